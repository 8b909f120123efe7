package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// envPrefix is the prefix every environment variable override must carry,
// e.g. JAKTTEST_RUNNER_JOBS for runner.jobs.
const envPrefix = "JAKTTEST"

var (
	configMu  sync.Mutex
	appConfig *Config
)

// Load resolves the layered configuration: built-in defaults, then an
// optional config file (jakttest.yaml in the working directory or the
// user config directory), then JAKTTEST_* environment variables, then
// overrides (later entries win over earlier ones). It stores the result
// for later retrieval via GetConfig.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("jakttest")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, dir := range getUserConfigPaths() {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("config: bind env var %s: %w", spec.Name, err)
		}
	}

	for _, override := range overrides {
		for key, val := range override {
			v.Set(key, val)
		}
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the configuration most recently resolved by Load, or
// nil if Load has never run.
func GetConfig() *Config {
	configMu.Lock()
	defer configMu.Unlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runner.jobs", runtime.NumCPU())
	v.SetDefault("runner.build_dir", "")
	v.SetDefault("runner.temp_dir", os.TempDir())
	v.SetDefault("runner.cpp_compiler", "clang++")
	v.SetDefault("runner.hide_reasons", false)
	v.SetDefault("runner.include_patterns", []string{"**/*.jakt"})
	v.SetDefault("runner.exclude_patterns", []string{})
	v.SetDefault("runner.max_spawn_rate", 0.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", defaultHistoryPath())
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".jakttest", "history.db")
	}
	return filepath.Join(dir, "jakttest", "history.db")
}

// getUserConfigPaths returns the directories Load should also search for
// a jakttest.yaml config file, beyond the working directory.
func getUserConfigPaths() []string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return nil
	}
	return []string{filepath.Join(dir, "jakttest")}
}

// envSpec names one environment variable Load binds explicitly, beyond
// viper's automatic JAKTTEST_<KEY> replacement, so the common flags have
// a documented, stable env var name.
type envSpec struct {
	Name string
	Path string
}

func getEnvSpecs() []envSpec {
	return []envSpec{
		{Name: "JAKTTEST_LOG_LEVEL", Path: "logging.level"},
		{Name: "JAKTTEST_LOG_PROFILE", Path: "logging.profile"},
		{Name: "JAKTTEST_JOBS", Path: "runner.jobs"},
		{Name: "JAKTTEST_BUILD_DIR", Path: "runner.build_dir"},
		{Name: "JAKTTEST_TEMP_DIR", Path: "runner.temp_dir"},
		{Name: "JAKTTEST_CPP_COMPILER", Path: "runner.cpp_compiler"},
		{Name: "JAKTTEST_HISTORY_PATH", Path: "history.path"},
	}
}
