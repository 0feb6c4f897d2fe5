// Package config loads runtime settings from the environment, with an
// optional .env file for local development. All variables carry the
// RAAHGIR_ prefix.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting.
type Config struct {
	SearchBaseURL  string `envconfig:"SEARCH_BASE_URL"`
	POIBaseURL     string `envconfig:"POI_BASE_URL"`
	ReverseBaseURL string `envconfig:"REVERSE_BASE_URL"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ReverseTimeout time.Duration `envconfig:"REVERSE_TIMEOUT" default:"15s"`
	Fingerprint    string        `envconfig:"FINGERPRINT" default:"chrome"`

	Storage    string `envconfig:"STORAGE" default:"sqlite"` // sqlite, postgres, ndjson, csv
	StorageDSN string `envconfig:"STORAGE_DSN" default:"raahgir.db"`

	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	MetricsPort int    `envconfig:"METRICS_PORT" default:"0"` // 0 disables the metrics server

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // text or json
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("raahgir", &cfg); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps the configured level string onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
