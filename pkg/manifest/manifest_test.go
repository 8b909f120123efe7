package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDecodesFullManifest(t *testing.T) {
	path := writeManifest(t, `
paths:
  - tests/
  - examples/smoke.jakt
include:
  - "**/*.jakt"
exclude:
  - "**/fixtures/**"
jobs: 8
`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"tests/", "examples/smoke.jakt"}, m.Paths)
	assert.Equal(t, []string{"**/*.jakt"}, m.Include)
	assert.Equal(t, []string{"**/fixtures/**"}, m.Exclude)
	assert.Equal(t, 8, m.Jobs)
}

func TestLoadAllowsPartialManifest(t *testing.T) {
	path := writeManifest(t, `
paths:
  - tests/
`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"tests/"}, m.Paths)
	assert.Empty(t, m.Include)
	assert.Zero(t, m.Jobs)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeManifest(t, `
paths:
  - tests/
conection:
  - typo
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeManifest(t, "paths: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}
