package crawler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/parsamap/raahgir/internal/geo"
	"github.com/parsamap/raahgir/internal/raah"
)

type reverseResponse struct {
	Features []struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"features"`
}

// Neighborhoods samples points inside the polygon and reverse-geocodes
// each one, returning the distinct neighborhood names in discovery
// order. Points that fail to resolve are skipped; only cancellation
// aborts the scan.
func Neighborhoods(ctx context.Context, client *raah.Client, polygon geo.Ring, samples int, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	points := geo.SamplePolygon(polygon, samples, 0)
	seen := make(map[string]struct{})
	var names []string

	for i, pt := range points {
		if ctx.Err() != nil {
			return names, ctx.Err()
		}

		body, err := client.ReverseGeocode(ctx, pt.Lon(), pt.Lat(), "neighborhood")
		if err != nil {
			if ctx.Err() != nil {
				return names, ctx.Err()
			}
			logger.Debug("reverse geocode failed", "point", i, "err", err)
			continue
		}

		var parsed reverseResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			logger.Debug("reverse geocode unparseable", "point", i, "err", err)
			continue
		}

		for _, f := range parsed.Features {
			name := f.Properties.Name
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	return names, nil
}
