package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/parsamap/raahgir/internal/config"
	"github.com/parsamap/raahgir/internal/fingerprint"
	"github.com/parsamap/raahgir/internal/geo"
	"github.com/parsamap/raahgir/internal/metrics"
	"github.com/parsamap/raahgir/internal/raah"
	"github.com/parsamap/raahgir/internal/storage"
	"github.com/parsamap/raahgir/internal/storage/csvbackend"
	"github.com/parsamap/raahgir/internal/storage/jsonbackend"
	"github.com/parsamap/raahgir/internal/storage/postgres"
	"github.com/parsamap/raahgir/internal/storage/sqlite"
)

// app bundles everything a command needs.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   storage.Backend
	metrics *metrics.Server
}

func newApp(ctx context.Context, needsStore bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, log: logger}

	if needsStore {
		a.store, err = openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	if cfg.MetricsPort > 0 {
		a.metrics = metrics.Start(cfg.MetricsPort)
		logger.Info("metrics server listening", "port", cfg.MetricsPort)
	}

	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.metrics != nil {
		if err := a.metrics.Stop(ctx); err != nil {
			a.log.Warn("stopping metrics server", "err", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing storage", "err", err)
		}
	}
}

func (a *app) clientConfig() raah.Config {
	return raah.Config{
		SearchBaseURL:  a.cfg.SearchBaseURL,
		POIBaseURL:     a.cfg.POIBaseURL,
		ReverseBaseURL: a.cfg.ReverseBaseURL,
		Timeout:        a.cfg.RequestTimeout,
		ReverseTimeout: a.cfg.ReverseTimeout,
		Fingerprint:    fingerprint.Profile(a.cfg.Fingerprint),
		Logger:         a.log,
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage {
	case "sqlite":
		return sqlite.New(cfg.StorageDSN)
	case "postgres":
		return postgres.New(ctx, cfg.StorageDSN)
	case "ndjson":
		return jsonbackend.New(cfg.StorageDSN)
	case "csv":
		return csvbackend.New(cfg.StorageDSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// parsePolygon parses "lon,lat|lon,lat|..." into a ring. An argument
// prefixed with @ is read as a GeoJSON file instead.
func parsePolygon(s string) (geo.Ring, error) {
	if s == "" {
		return nil, fmt.Errorf("polygon is required, format: lon,lat|lon,lat|... or @file.geojson")
	}
	if strings.HasPrefix(s, "@") {
		return loadGeoJSON(strings.TrimPrefix(s, "@"))
	}

	var ring geo.Ring
	for _, part := range strings.Split(s, "|") {
		var lon, lat float64
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%f,%f", &lon, &lat); err != nil {
			return nil, fmt.Errorf("bad polygon vertex %q: %w", part, err)
		}
		ring = append(ring, geo.Point{lon, lat})
	}
	if len(ring) < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 vertices, got %d", len(ring))
	}
	return ring, nil
}

// loadGeoJSON extracts the outer ring from a GeoJSON geometry or
// Feature file.
func loadGeoJSON(path string) (geo.Ring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading polygon file: %w", err)
	}

	var doc struct {
		Coordinates any `json:"coordinates"`
		Geometry    *struct {
			Coordinates any `json:"coordinates"`
		} `json:"geometry"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	coords := doc.Coordinates
	if coords == nil && doc.Geometry != nil {
		coords = doc.Geometry.Coordinates
	}
	ring := geo.OuterRing(coords)
	if len(ring) < 3 {
		return nil, fmt.Errorf("%s holds no usable polygon ring", path)
	}
	return ring, nil
}
