// Package config provides the layered configuration for the Slack export
// tool: built-in defaults, an optional YAML config file, SLACK_EXPORT_*
// environment variables, and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	// Token is the Slack user OAuth token (xoxp-...). Usually supplied via
	// the SLACK_TOKEN environment variable or the --token flag, never
	// written to the config file.
	Token string `mapstructure:"token"`

	Fetch   FetchConfig   `mapstructure:"fetch"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// FetchConfig bounds export fetches.
type FetchConfig struct {
	// PageSize is the per-request batch size hint.
	PageSize int `mapstructure:"page_size"`

	// MaxResults caps one export's total record count (0 = unlimited).
	MaxResults int `mapstructure:"max_results"`

	// PerWindowCap caps a single monthly window in chunked searches.
	PerWindowCap int `mapstructure:"per_window_cap"`

	// ChunkMonths enables monthly chunking for searches by default.
	ChunkMonths bool `mapstructure:"chunk_months"`
}

// HTTPConfig tunes the API client.
type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	BulkTimeout time.Duration `mapstructure:"bulk_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Pretty selects human-readable console output over JSON.
	Pretty bool `mapstructure:"pretty"`
}

// EnvPrefix is the environment variable prefix, e.g. SLACK_EXPORT_TOKEN.
const EnvPrefix = "SLACK_EXPORT"

// SetDefaults installs the built-in defaults on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("fetch.page_size", 100)
	v.SetDefault("fetch.max_results", 1000)
	v.SetDefault("fetch.per_window_cap", 10000)
	v.SetDefault("fetch.chunk_months", false)

	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.bulk_timeout", "60s")
	v.SetDefault("http.max_retries", 5)
	v.SetDefault("http.min_interval", "100ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", true)
}

// Load reads configuration into v and unmarshals it. When cfgFile is empty
// the default locations are searched: ./slack-export.yaml and
// ~/.config/slack-export/config.yaml. A missing config file is not an
// error; the defaults and environment carry the run.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("slack-export")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/slack-export")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// SLACK_TOKEN is the conventional variable name; accept it alongside
	// the prefixed form.
	_ = v.BindEnv("token", "SLACK_EXPORT_TOKEN", "SLACK_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot produce a sane run.
func (c *Config) Validate() error {
	if c.Fetch.PageSize <= 0 {
		return fmt.Errorf("fetch.page_size must be positive, got %d", c.Fetch.PageSize)
	}
	if c.Fetch.MaxResults < 0 {
		return fmt.Errorf("fetch.max_results must not be negative, got %d", c.Fetch.MaxResults)
	}
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("http.max_retries must be at least 1, got %d", c.HTTP.MaxRetries)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
