// Package metrics exposes prometheus instrumentation for the crawl
// loops and the upstream client.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raahgir_upstream_requests_total",
			Help: "Total upstream requests by endpoint and outcome",
		},
		[]string{"endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raahgir_upstream_request_duration_seconds",
			Help:    "Upstream request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"endpoint"},
	)

	RateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raahgir_rate_limit_waits_total",
			Help: "Number of 429 backoff pauses by endpoint",
		},
		[]string{"endpoint"},
	)

	PagesCrawled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raahgir_listing_pages_total",
			Help: "Listing pages successfully retrieved",
		},
	)

	FeaturesCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raahgir_features_collected_total",
			Help: "Distinct features kept from bundle searches after geometry dedup",
		},
	)

	DuplicatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raahgir_duplicates_dropped_total",
			Help: "Features dropped by the geometry dedup step",
		},
	)

	DetailOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raahgir_detail_outcomes_total",
			Help: "POI detail fetch outcomes (resolved, placeholder, failed)",
		},
		[]string{"outcome"},
	)
)

// RecordRequest updates the per-request metric families.
func RecordRequest(endpoint string, status int, err error, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	if err != nil && status == 0 {
		statusStr = "error"
	}
	RequestsTotal.WithLabelValues(endpoint, statusStr).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Server encapsulates an HTTP server exposing /metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
