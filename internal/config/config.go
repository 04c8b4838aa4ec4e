// Package config loads crawler configuration from a JSON or YAML file with
// SHELFCRAWL_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

const (
	DefaultPath         = "config.json"
	DefaultBaseURL      = "https://zootovary.ru"
	DefaultLogsDir      = "log"
	DefaultOutputDir    = "out"
	DefaultMaxRetries   = 1
	DefaultRestartCount = 3
	DefaultIntervalM    = 0.2
	EnvPrefix           = "SHELFCRAWL"
)

// Load reads path and returns the decoded configuration. A missing file at
// the default path is not an error; defaults and environment apply.
func Load(path string) (*types.Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !(path == DefaultPath && errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	window, err := ParseDelayRange(v.Get("delay_range_s"))
	if err != nil {
		return nil, err
	}
	cfg.Delay = window

	if !v.IsSet("restart.interval_m") {
		cfg.Restart.IntervalM = DefaultIntervalM
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("timeout_s", 30)
	v.SetDefault("max_redirects", 10)
	v.SetDefault("workers", 1)
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("sinks", []string{"csv"})
	v.SetDefault("csv_delimiter", ";")
	v.SetDefault("log_level", "debug")

	// Bound so AutomaticEnv can see nested and unset keys.
	for _, key := range []string{
		"max_retries", "delay_range_s", "restart.restart_count", "restart.interval_m",
		"logs_dir", "output_directory", "output_file", "postgres_url", "tls_profile",
		"rotate_headers", "respect_robots", "render_js", "metrics_addr",
	} {
		_ = v.BindEnv(key)
	}
}
