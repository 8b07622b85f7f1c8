// Package config loads skctl settings from flags, environment variables, a
// .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"skctl/internal/detection"
	"skctl/internal/imagery"
	"skctl/internal/logger"
	"skctl/internal/task"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. SKCTL_TOKEN.
const EnvPrefix = "SKCTL"

// Config holds all configuration values for the CLI.
type Config struct {
	// Bearer token sent with every backend call
	Token string
	// File caching a token and its expiry, used when Token is empty
	TokenFile string

	ImageryURL string
	KrakenURL  string
	TaskingURL string

	PollInterval time.Duration
	// Zero means unlimited
	MaxAttempts int
	// Zero means no wall-clock cap
	WaitTimeout time.Duration
	HTTPTimeout time.Duration

	LogLevel slog.Level

	// OTLP/gRPC collector address; empty disables tracing
	OTELEndpoint string
	// Address serving /metrics; empty disables the listener
	MetricsAddr string

	TileConcurrency int
	TileRate        float64
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("token", "")
	v.SetDefault("token_file", "")
	v.SetDefault("imagery_url", imagery.DefaultURL)
	v.SetDefault("kraken_url", detection.DefaultURL)
	v.SetDefault("tasking_url", task.DefaultTaskingURL)
	v.SetDefault("poll_interval", task.DefaultInterval)
	v.SetDefault("max_attempts", 0)
	v.SetDefault("wait_timeout", time.Duration(0))
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("tile_concurrency", 4)
	v.SetDefault("tile_rate", 10.0)
}

// Bind prepares v for Load: defaults, environment lookup and, when path is
// set, the config file. A .env file in the working directory is loaded into
// the environment first; variables already set win.
func Bind(v *viper.Viper, path string) error {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// Load reads configuration using a fresh viper instance.
func Load(path string) (*Config, error) {
	v := viper.New()
	if err := Bind(v, path); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper builds and validates a Config from an already bound viper.
func FromViper(v *viper.Viper) (*Config, error) {
	level, err := logger.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Token:           strings.TrimSpace(v.GetString("token")),
		TokenFile:       v.GetString("token_file"),
		ImageryURL:      strings.TrimRight(v.GetString("imagery_url"), "/"),
		KrakenURL:       strings.TrimRight(v.GetString("kraken_url"), "/"),
		TaskingURL:      strings.TrimRight(v.GetString("tasking_url"), "/"),
		PollInterval:    v.GetDuration("poll_interval"),
		MaxAttempts:     v.GetInt("max_attempts"),
		WaitTimeout:     v.GetDuration("wait_timeout"),
		HTTPTimeout:     v.GetDuration("http_timeout"),
		LogLevel:        level,
		OTELEndpoint:    v.GetString("otel_endpoint"),
		MetricsAddr:     v.GetString("metrics_addr"),
		TileConcurrency: v.GetInt("tile_concurrency"),
		TileRate:        v.GetFloat64("tile_rate"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max_attempts must not be negative, got %d", c.MaxAttempts))
	}
	if c.WaitTimeout < 0 {
		errs = append(errs, fmt.Errorf("wait_timeout must not be negative, got %s", c.WaitTimeout))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout))
	}
	if c.TileConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("tile_concurrency must be positive, got %d", c.TileConcurrency))
	}
	for _, kv := range [][2]string{{"imagery_url", c.ImageryURL}, {"kraken_url", c.KrakenURL}, {"tasking_url", c.TaskingURL}} {
		if kv[1] == "" {
			errs = append(errs, fmt.Errorf("%s is required (env: %s_%s)", kv[0], EnvPrefix, strings.ToUpper(kv[0])))
		}
	}
	return errors.Join(errs...)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
