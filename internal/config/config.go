// Package config loads jakttest's layered run configuration: defaults,
// then an optional config file, then JAKTTEST_* environment variables,
// then CLI-flag overrides supplied by the caller as a map, in that
// precedence order (later wins).
package config

// Config is the full resolved configuration for one jakttest invocation.
type Config struct {
	Runner  RunnerConfig  `mapstructure:"runner"`
	Logging LoggingConfig `mapstructure:"logging"`
	Debug   DebugConfig   `mapstructure:"debug"`
	History HistoryConfig `mapstructure:"history"`
}

// RunnerConfig holds everything the scheduler needs before it can dispatch
// a single test.
type RunnerConfig struct {
	Jobs            int      `mapstructure:"jobs"`
	BuildDir        string   `mapstructure:"build_dir"`
	TempDir         string   `mapstructure:"temp_dir"`
	CppCompiler     string   `mapstructure:"cpp_compiler"`
	HideReasons     bool     `mapstructure:"hide_reasons"`
	IncludePatterns []string `mapstructure:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
	MaxSpawnRate    float64  `mapstructure:"max_spawn_rate"`
}

// LoggingConfig controls internal/observability's logger construction.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// DebugConfig toggles developer-facing diagnostics.
type DebugConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// HistoryConfig controls pkg/runstore persistence.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}
