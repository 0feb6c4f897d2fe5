package crawler

import (
	"context"
	"log/slog"

	"github.com/parsamap/raahgir/internal/geo"
	"github.com/parsamap/raahgir/internal/metrics"
	"github.com/parsamap/raahgir/internal/raah"
)

// PointStatus is the lifecycle of one search point. Done requires at
// least one returned feature; an attempted point with an empty result
// goes back to pending.
type PointStatus string

const (
	PointPending PointStatus = "pending"
	PointActive  PointStatus = "active"
	PointDone    PointStatus = "done"
	PointError   PointStatus = "error"
)

// PointState is the visible state of one search point.
type PointState struct {
	Index    int
	Status   PointStatus
	Features int // new features this point contributed
	Err      error
}

// PointProgress is a monotone progress snapshot: Completed counts both
// done and errored points.
type PointProgress struct {
	Completed int
	Total     int
	Places    int
}

// PointSearchResult summarizes a finished multi-point search.
type PointSearchResult struct {
	Tokens []string // distinct POI tokens in discovery order
	States []PointState
	Errors int
}

// PointSearchConfig configures a multi-point search.
type PointSearchConfig struct {
	Zoom   int // bundle-search zoom level, 14
	Logger *slog.Logger
}

// PointSearcher runs a bundle search per generated point, sequentially.
// Points are independent: a failed point is recorded and the run moves
// on, so partial coverage still yields results. Features are deduped
// structurally across points since adjacent cameras overlap.
type PointSearcher struct {
	client *raah.Client
	cfg    PointSearchConfig
}

func NewPointSearcher(client *raah.Client, cfg PointSearchConfig) *PointSearcher {
	if cfg.Zoom == 0 {
		cfg.Zoom = 14
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PointSearcher{client: client, cfg: cfg}
}

// Run searches the polygon once per point. onProgress fires after every
// point completes; onFeature fires once per distinct feature, with the
// index of the point that discovered it. Cancellation aborts between
// points with the states accumulated so far discarded and ctx.Err()
// returned.
func (s *PointSearcher) Run(ctx context.Context, categorySlug string, polygon geo.Ring, points []geo.Point, onProgress func(PointProgress), onFeature func(f raah.Feature, sourceIndex int)) (*PointSearchResult, error) {
	res := &PointSearchResult{
		States: make([]PointState, len(points)),
	}
	for i := range res.States {
		res.States[i] = PointState{Index: i, Status: PointPending}
	}

	seen := NewDedupeSet()
	seenTokens := make(map[string]struct{})

	for i, pt := range points {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res.States[i].Status = PointActive

		found, err := s.client.BundleSearch(ctx, categorySlug, polygon, s.cfg.Zoom, pt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.cfg.Logger.Warn("search point failed", "point", i, "kind", raah.Classify(err), "err", err)
			res.States[i].Status = PointError
			res.States[i].Err = err
			res.Errors++
			s.progress(res, i+1, len(points), onProgress)
			continue
		}

		returned := len(found.GeoJSON.Features)
		fresh := 0
		for _, f := range found.GeoJSON.Features {
			if !seen.Add(&f.Geometry) {
				metrics.DuplicatesDropped.Inc()
				continue
			}
			fresh++
			metrics.FeaturesCollected.Inc()
			if f.Properties.Token != "" {
				if _, dup := seenTokens[f.Properties.Token]; !dup {
					seenTokens[f.Properties.Token] = struct{}{}
					res.Tokens = append(res.Tokens, f.Properties.Token)
				}
			}
			if onFeature != nil {
				onFeature(f, i)
			}
		}
		for _, tok := range found.POITokens {
			if tok == "" {
				continue
			}
			if _, dup := seenTokens[tok]; !dup {
				seenTokens[tok] = struct{}{}
				res.Tokens = append(res.Tokens, tok)
			}
		}

		// A point may return only duplicates of features another point
		// already found; it still counts as done, with zero fresh features.
		if returned > 0 {
			res.States[i].Status = PointDone
		} else {
			res.States[i].Status = PointPending
		}
		res.States[i].Features = fresh
		s.cfg.Logger.Debug("search point finished", "point", i, "returned", returned, "new_features", fresh, "total_tokens", len(res.Tokens))
		s.progress(res, i+1, len(points), onProgress)
	}

	return res, nil
}

func (s *PointSearcher) progress(res *PointSearchResult, completed, total int, onProgress func(PointProgress)) {
	if onProgress == nil {
		return
	}
	onProgress(PointProgress{
		Completed: completed,
		Total:     total,
		Places:    len(res.Tokens),
	})
}
