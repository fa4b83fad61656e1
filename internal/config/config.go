package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	BaseURL        string        `mapstructure:"SITE_BASE_URL"`
	SearchPath     string        `mapstructure:"SITE_SEARCH_PATH"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxAttempts    int           `mapstructure:"MAX_ATTEMPTS"`
	BackoffInitial time.Duration `mapstructure:"BACKOFF_INITIAL"`
	BackoffMax     time.Duration `mapstructure:"BACKOFF_MAX"`
	MaxBodyBytes   int64         `mapstructure:"MAX_BODY_BYTES"`
	Concurrency    int           `mapstructure:"LOOKUP_WORKERS"`
	UserAgents     []string      `mapstructure:"USER_AGENTS"`
	Proxies        []string      `mapstructure:"PROXIES"`

	PostgresURL string        `mapstructure:"POSTGRES_URL"`
	RedisAddr   string        `mapstructure:"REDIS_ADDR"`
	SeenTTL     time.Duration `mapstructure:"SEEN_TTL"`

	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
}

// Load reads configuration from an env file and environment variables.
// A missing file is not an error; the environment always wins.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	v.SetDefault("SITE_BASE_URL", "https://www.etymonline.com/word/")
	v.SetDefault("SITE_SEARCH_PATH", "/search")
	v.SetDefault("REQUEST_TIMEOUT", 15*time.Second)
	v.SetDefault("MAX_ATTEMPTS", 3)
	v.SetDefault("BACKOFF_INITIAL", 500*time.Millisecond)
	v.SetDefault("BACKOFF_MAX", 8*time.Second)
	v.SetDefault("MAX_BODY_BYTES", 5<<20)
	v.SetDefault("LOOKUP_WORKERS", 4)
	v.SetDefault("USER_AGENTS", []string{})
	v.SetDefault("PROXIES", []string{})
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("SEEN_TTL", 48*time.Hour)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid SITE_BASE_URL %q: %w", c.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid SITE_BASE_URL %q: need an absolute http(s) URL", c.BaseURL)
	}
	if c.Concurrency < 1 {
		return errors.New("LOOKUP_WORKERS must be at least 1")
	}
	if c.MaxAttempts < 1 {
		return errors.New("MAX_ATTEMPTS must be at least 1")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
