package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.ReverseTimeout != 15*time.Second {
		t.Errorf("ReverseTimeout = %v, want 15s", cfg.ReverseTimeout)
	}
	if cfg.Storage != "sqlite" || cfg.StorageDSN != "raahgir.db" {
		t.Errorf("storage defaults = %s %s", cfg.Storage, cfg.StorageDSN)
	}
	if cfg.Fingerprint != "chrome" {
		t.Errorf("Fingerprint = %s, want chrome", cfg.Fingerprint)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RAAHGIR_STORAGE", "ndjson")
	t.Setenv("RAAHGIR_STORAGE_DSN", "/tmp/places.jsonl")
	t.Setenv("RAAHGIR_REQUEST_TIMEOUT", "3s")
	t.Setenv("RAAHGIR_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Storage != "ndjson" || cfg.StorageDSN != "/tmp/places.jsonl" {
		t.Errorf("storage = %s %s", cfg.Storage, cfg.StorageDSN)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, want debug", cfg.SlogLevel())
	}
}

func TestSlogLevel_Unknown(t *testing.T) {
	c := &Config{LogLevel: "weird"}
	if c.SlogLevel() != slog.LevelInfo {
		t.Errorf("unknown level must default to info")
	}
}
