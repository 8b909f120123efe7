package cmd

import (
	"errors"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{name: "set all values", version: "1.0.0", commit: "abc123", buildDate: "2024-01-15"},
		{name: "set dev version", version: "dev", commit: "HEAD", buildDate: "unknown"},
		{name: "set empty values", version: "", commit: "", buildDate: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)
			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestGetAppIdentity(t *testing.T) {
	t.Run("returns nil before init", func(t *testing.T) {
		orig := appIdentity
		appIdentity = nil
		defer func() { appIdentity = orig }()

		assert.Nil(t, GetAppIdentity())
	})

	t.Run("returns identity after set", func(t *testing.T) {
		orig := appIdentity
		appIdentity = &Identity{BinaryName: "jakttest"}
		defer func() { appIdentity = orig }()

		result := GetAppIdentity()
		assert.NotNil(t, result)
		assert.Equal(t, "jakttest", result.BinaryName)
	})
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))

	coded := exitError(foundry.ExitSignalInt, "cancelled", errors.New("boom"))
	assert.Equal(t, foundry.ExitSignalInt, ExitCode(coded))

	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(errors.New("untyped")))
}

func TestExitCodeErrorMessage(t *testing.T) {
	err := exitError(1, "Some tests failed", errors.New("2 of 10 tests failed"))
	assert.Contains(t, err.Error(), "Some tests failed")
	assert.Contains(t, err.Error(), "2 of 10 tests failed")

	bare := exitError(1, "no underlying error", nil)
	assert.Equal(t, "no underlying error", bare.Error())
}

func TestExitCodeErrorUnwrap(t *testing.T) {
	underlying := errors.New("root cause")
	err := exitError(2, "wrapped", underlying)
	assert.ErrorIs(t, err, underlying)
}
