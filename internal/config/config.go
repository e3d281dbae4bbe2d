// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Fetch   FetchConfig   `mapstructure:"fetch" yaml:"fetch"`
	Query   QueryConfig   `mapstructure:"query" yaml:"query"`
}

// LoggingConfig controls the zap logger and its optional rotating file sink.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
}

// FetchConfig tunes the page-fetching network client.
type FetchConfig struct {
	Timeout         time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	MaxRedirects    int               `mapstructure:"max_redirects" yaml:"max_redirects"`
	UserAgent       string            `mapstructure:"user_agent" yaml:"user_agent"`
	RateLimit       float64           `mapstructure:"rate_limit" yaml:"rate_limit"`
	Concurrency     int               `mapstructure:"concurrency" yaml:"concurrency"`
	IgnoreTLSErrors bool              `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Headers         map[string]string `mapstructure:"headers" yaml:"headers"`
}

// QueryConfig holds defaults for the query command.
type QueryConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logging --
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.add_source", false)

	// -- Fetch --
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("fetch.user_agent", "strix/1.0 (+https://github.com/strixweb/strix)")
	v.SetDefault("fetch.rate_limit", 4.0)
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("fetch.ignore_tls_errors", false)

	// -- Query --
	v.SetDefault("query.format", "text")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be 'console' or 'json', got %q", c.Logging.Format)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be a positive duration")
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must not be negative")
	}
	if c.Fetch.RateLimit <= 0 {
		return fmt.Errorf("fetch.rate_limit must be a positive number of requests per second")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be a positive integer")
	}
	switch c.Query.Format {
	case "text", "json", "xml":
	default:
		return fmt.Errorf("query.format must be one of 'text', 'json', 'xml', got %q", c.Query.Format)
	}
	return nil
}
