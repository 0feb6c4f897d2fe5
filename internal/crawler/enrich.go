package crawler

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/parsamap/raahgir/internal/metrics"
	"github.com/parsamap/raahgir/internal/raah"
)

// Enricher fills placeholder place records with fetched detail. Work is
// incremental: each record is updated in place and announced as soon as
// its fetch resolves, so a consumer renders partial results while the
// rest is still pending. The client owns retries and the 429 pause; the
// enricher only maps outcomes onto the record.
type Enricher struct {
	client *raah.Client
	log    *slog.Logger
	mu     sync.Locker
	group  singleflight.Group
}

// NewEnricher builds an enricher. mu serializes record mutation with
// readers that snapshot the records mid-run; nil is fine when no reader
// looks before Enrich returns.
func NewEnricher(client *raah.Client, logger *slog.Logger, mu sync.Locker) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	if mu == nil {
		mu = noLock{}
	}
	return &Enricher{client: client, log: logger, mu: mu}
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

// Enrich resolves every place sequentially, invoking onUpdate with the
// index of each record as it changes. A 404 marks the record not-found,
// which is terminal; any other failure marks it failed and keeps it
// eligible for Retry. Only cancellation stops the loop early; the
// remaining records keep their pending placeholders.
func (e *Enricher) Enrich(ctx context.Context, places []*Place, onUpdate func(i int)) error {
	for i, p := range places {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.enrichOne(ctx, p)
		if onUpdate != nil {
			onUpdate(i)
		}
	}
	return nil
}

// Retry re-runs enrichment for a single record, typically from a manual
// action. Concurrent retries of the same token collapse into one fetch.
// The returned error is nil when the record resolved, including the
// terminal not-found outcome.
func (e *Enricher) Retry(ctx context.Context, p *Place) error {
	_, err, _ := e.group.Do(p.Token, func() (any, error) {
		e.enrichOne(ctx, p)
		e.mu.Lock()
		kind := p.FetchError
		e.mu.Unlock()
		if kind != "" && kind != raah.KindNotFound {
			return nil, errors.New("crawler: detail fetch failed: " + string(kind))
		}
		return nil, nil
	})
	return err
}

// enrichOne fetches outside the lock and applies the outcome under it,
// so snapshot readers never observe a half-filled record.
func (e *Enricher) enrichOne(ctx context.Context, p *Place) {
	d, err := e.client.Detail(ctx, p.Token)

	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case err == nil:
		p.FillFromDetail(d)
		metrics.DetailOutcomes.WithLabelValues("ok").Inc()
	case errors.Is(err, raah.ErrNotFound):
		p.MarkNotFound()
		metrics.DetailOutcomes.WithLabelValues("not_found").Inc()
		e.log.Debug("place gone upstream", "token", p.Token)
	default:
		kind := raah.Classify(err)
		p.MarkFailed(kind)
		metrics.DetailOutcomes.WithLabelValues("failed").Inc()
		e.log.Warn("detail fetch failed", "token", p.Token, "kind", kind, "err", err)
	}
}
