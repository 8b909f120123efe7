package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_FillOverwritesOnlyTrailingSlots(t *testing.T) {
	buf := New(Command{
		ShellInvocation: "/usr/bin/python3",
		DriverScript:    "jakttest/run_one.py",
		JaktBinary:      "/build/bin/jakt",
		JaktLibDir:      "/build/lib",
		TargetTriple:    "x86_64-unknown-linux-gnu",
		CppCompiler:     "/bin/clang++",
	})

	argv := buf.Fill("", "/tmp/dir0", "foo.jakt")
	require.Len(t, argv, 14)
	assert.Equal(t, []string{
		"/usr/bin/python3", "jakttest/run_one.py",
		"--jakt-binary", "/build/bin/jakt",
		"--jakt-lib-dir", "/build/lib",
		"--target-triple", "x86_64-unknown-linux-gnu",
		"--cpp-compiler", "/bin/clang++",
		"--cpp-include", "None", "/tmp/dir0", "foo.jakt",
	}, argv)

	argv2 := buf.Fill("extra.h", "/tmp/dir1", "bar.jakt")
	assert.Equal(t, []string{
		"/usr/bin/python3", "jakttest/run_one.py",
		"--jakt-binary", "/build/bin/jakt",
		"--jakt-lib-dir", "/build/lib",
		"--target-triple", "x86_64-unknown-linux-gnu",
		"--cpp-compiler", "/bin/clang++",
		"--cpp-include", "extra.h", "/tmp/dir1", "bar.jakt",
	}, argv2)
}

func TestBuffer_DefaultsCppCompilerToClangxx(t *testing.T) {
	buf := New(Command{ShellInvocation: "/usr/bin/python3", DriverScript: "jakttest/run_one.py"})
	argv := buf.Fill("", "/tmp/dir0", "foo.jakt")
	assert.Equal(t, "--cpp-compiler", argv[8])
	assert.Equal(t, "clang++", argv[9])
}

func TestReadStageOutputs_MissingFilesAreEmpty(t *testing.T) {
	dir := t.TempDir()
	stdout, stderr, err := ReadStageOutputs(dir, 0)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}

func TestReadStageOutputs_ReadsPresentFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runtest.out"), []byte("hi\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runtest.err"), []byte(""), 0o644))

	stdout, stderr, err := ReadStageOutputs(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", stdout)
	assert.Equal(t, "", stderr)
}

func TestReadStageOutputs_CompileStageOnlyHasStderr(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compile_cpp.err"), []byte("oops\n"), 0o644))

	stdout, stderr, err := ReadStageOutputs(dir, 2)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, "oops\n", stderr)
}

func TestReadStageOutputs_AbruptExitReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	stdout, stderr, err := ReadStageOutputs(dir, 42)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}
