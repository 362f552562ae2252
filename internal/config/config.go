// Package config loads service configuration from an optional YAML file
// and environment variables. Environment variables take precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Defaults applied to fields left unset by both the file and the environment.
const (
	DefaultPort            = "8080"
	DefaultCacheTTL        = 30 * time.Second
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxBodyBytes    = 10 << 20
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete service configuration.
type Config struct {
	Port             string        `yaml:"port" envconfig:"PORT"`
	DatabaseURL      string        `yaml:"database_url" envconfig:"DATABASE_URL"`
	RedisURL         string        `yaml:"redis_url" envconfig:"REDIS_URL"`
	CacheTTL         time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	StrictValidation bool          `yaml:"strict_validation" envconfig:"STRICT_VALIDATION"`
	LogLevel         string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout   time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
}

// Load reads the YAML file named by CONFIG_FILE (if set), overlays the
// environment, fills defaults and validates the result.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Unset variables leave file values untouched.
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.CacheTTL < 0 || c.ShutdownTimeout < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: max_body_bytes must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
}
