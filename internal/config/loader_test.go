package config

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	ctx := context.Background()

	cfg, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "clang++", cfg.Runner.CppCompiler)
	assert.False(t, cfg.Runner.HideReasons)
	assert.Equal(t, []string{"**/*.jakt"}, cfg.Runner.IncludePatterns)
	assert.Zero(t, cfg.Runner.MaxSpawnRate)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)

	assert.False(t, cfg.Debug.Enabled)
	assert.False(t, cfg.Debug.PprofEnabled)

	assert.True(t, cfg.History.Enabled)
	assert.NotEmpty(t, cfg.History.Path)
}

func TestLoadRuntimeOverrides(t *testing.T) {
	ctx := context.Background()

	overrides := map[string]any{
		"runner": map[string]any{
			"jobs":         8,
			"cpp_compiler": "g++",
		},
		"logging": map[string]any{
			"level": "debug",
		},
	}

	cfg, err := Load(ctx, overrides)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Runner.Jobs)
	assert.Equal(t, "g++", cfg.Runner.CppCompiler)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Non-overridden values remain default.
	assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
}

func TestLoadEnvOverrides(t *testing.T) {
	ctx := context.Background()

	t.Setenv("JAKTTEST_LOG_LEVEL", "warn")
	t.Setenv("JAKTTEST_CPP_COMPILER", "clang++-18")

	cfg, err := Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "clang++-18", cfg.Runner.CppCompiler)
}

func TestLoadPrecedenceRuntimeBeatsEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("JAKTTEST_LOG_LEVEL", "warn")

	overrides := map[string]any{
		"logging": map[string]any{"level": "error"},
	}
	cfg, err := Load(ctx, overrides)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestGetConfigReturnsLastLoaded(t *testing.T) {
	ctx := context.Background()

	cfg, err := Load(ctx, map[string]any{"runner": map[string]any{"jobs": 3}})
	require.NoError(t, err)
	require.NotNil(t, cfg)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, 3, retrieved.Runner.Jobs)
}

func TestGetConfigNilBeforeLoad(t *testing.T) {
	configMu.Lock()
	orig := appConfig
	appConfig = nil
	configMu.Unlock()
	defer func() {
		configMu.Lock()
		appConfig = orig
		configMu.Unlock()
	}()

	assert.Nil(t, GetConfig())
}

func TestGetEnvSpecsCarryPrefix(t *testing.T) {
	for _, spec := range getEnvSpecs() {
		assert.NotEmpty(t, spec.Path)
		assert.Contains(t, spec.Name, "JAKTTEST_")
	}
}

func TestGetUserConfigPaths(t *testing.T) {
	paths := getUserConfigPaths()
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		require.Len(t, paths, 1)
	} else {
		assert.Empty(t, paths)
	}
}
