package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"

	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Config holds the application configuration loaded from .env files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	APIBaseURL         string        `mapstructure:"api_base_url"`
	APITimeoutSeconds  int64         `mapstructure:"api_timeout_seconds"`
	APITimeout         time.Duration `mapstructure:"-"`
	APIWithCredentials bool          `mapstructure:"api_with_credentials"`

	OutputFormat string `mapstructure:"output_format"`
}

// Load reads configuration from environment variables and .env files.
// The base URL is deliberately not validated; a bad value fails at the network level.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	_ = godotenv.Load(".env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-api-client")
	v.SetDefault("app_env", EnvDevelopment)
	v.SetDefault("log_level", "info")
	v.SetDefault("api_base_url", "")
	v.SetDefault("api_timeout_seconds", 10)
	v.SetDefault("api_with_credentials", true)
	v.SetDefault("output_format", OutputJSON)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.APITimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid api_timeout_seconds (must be positive seconds)")
	}
	cfg.APITimeout = time.Duration(cfg.APITimeoutSeconds) * time.Second

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)
	cfg.OutputFormat = strings.ToLower(strings.TrimSpace(cfg.OutputFormat))
	switch cfg.OutputFormat {
	case OutputJSON, OutputYAML:
	default:
		return nil, fmt.Errorf("invalid output_format %q (expected json or yaml)", cfg.OutputFormat)
	}

	return &cfg, nil
}

// IsDevelopment reports whether request/response traffic logging should be on.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.Env == EnvDevelopment
}
