// Package revproxy exposes the reverse-geocoding endpoint through a
// small HTTP front. Browsers cannot call the upstream directly because
// of CORS, so the proxy forwards the query and passes the upstream
// status through untouched.
package revproxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/parsamap/raahgir/pkg/httpclient"
)

// Config configures the proxy handler.
type Config struct {
	UpstreamBaseURL string        // reverse geocoding service base URL
	Timeout         time.Duration // upstream deadline, 15s
	Logger          *slog.Logger
}

// Handler proxies reverse-geocoding lookups.
type Handler struct {
	cfg    Config
	client *httpclient.Client
}

func New(cfg Config) (*Handler, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout, MaxRedirects: 3})
	if err != nil {
		return nil, err
	}
	return &Handler{cfg: cfg, client: client}, nil
}

// Routes returns the proxy router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/api/raah-reverse", h.handleReverse)
	return r
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lon := q.Get("lon")
	lat := q.Get("lat")
	resultType := q.Get("result_type")

	if lon == "" || lat == "" || resultType == "" {
		writeError(w, http.StatusBadRequest, "lon, lat and result_type are required")
		return
	}
	if _, err := strconv.ParseFloat(lon, 64); err != nil {
		writeError(w, http.StatusBadRequest, "lon must be a number")
		return
	}
	if _, err := strconv.ParseFloat(lat, 64); err != nil {
		writeError(w, http.StatusBadRequest, "lat must be a number")
		return
	}

	upstream := h.cfg.UpstreamBaseURL + "/v1/features?result_type=" + url.QueryEscape(resultType) +
		"&location=" + url.QueryEscape(lon+","+lat)

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "building upstream request failed")
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			h.cfg.Logger.Warn("upstream timed out", "lon", lon, "lat", lat)
			writeError(w, http.StatusGatewayTimeout, "reverse geocoding timed out")
			return
		}
		h.cfg.Logger.Error("upstream request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "reverse geocoding unavailable")
		return
	}
	defer resp.Body.Close()

	// Upstream status goes through as-is, including its errors.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.cfg.Logger.Debug("copying upstream body failed", "err", err)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
