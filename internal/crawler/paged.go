package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parsamap/raahgir/internal/metrics"
	"github.com/parsamap/raahgir/internal/raah"
	"github.com/parsamap/raahgir/pkg/ratelimit"
)

// StopReason explains why a paged crawl ended.
type StopReason string

const (
	StopEndOfData StopReason = "end_of_data" // 404, empty page, or explicit detail message
	StopPageLimit StopReason = "page_limit"  // hit the page ceiling
	StopError     StopReason = "error"       // retries exhausted on a page
	StopCancelled StopReason = "cancelled"
)

// PagedConfig configures a paged crawl. Zero values pick the defaults.
type PagedConfig struct {
	MaxPages  int           // ceiling on page numbers, 1000
	PageDelay time.Duration // pause between consecutive pages, 300ms
	Logger    *slog.Logger
}

// PagedCrawler walks a city/category listing page by page until the
// upstream signals end of data. Retries and 429 pauses live in the
// client; a page whose retries are exhausted ends the crawl with the
// error and the last page that succeeded.
type PagedCrawler struct {
	client *raah.Client
	cfg    PagedConfig
}

// PagedResult summarizes a finished crawl. LastPage is the highest page
// that returned data, 0 when the very first page ended the crawl.
type PagedResult struct {
	LastPage int
	Items    int
	Reason   StopReason
}

func NewPagedCrawler(client *raah.Client, cfg PagedConfig) *PagedCrawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1000
	}
	if cfg.PageDelay == 0 {
		cfg.PageDelay = 300 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PagedCrawler{client: client, cfg: cfg}
}

// Crawl fetches pages 1..MaxPages, invoking onPage for each page that
// carried items. A callback error aborts the crawl. The returned error
// is nil when the crawl ended naturally (end of data or page limit).
func (c *PagedCrawler) Crawl(ctx context.Context, citySlug, categorySlug string, onPage func(page int, p *raah.PlacesPage) error) (*PagedResult, error) {
	res := &PagedResult{}

	limiter := ratelimit.Every(c.cfg.PageDelay, 0)
	defer limiter.Stop()

	for page := 1; page <= c.cfg.MaxPages; page++ {
		p, err := c.client.ListPage(ctx, citySlug, categorySlug, page)
		if err != nil {
			if errors.Is(err, raah.ErrNotFound) || errors.Is(err, raah.ErrMalformed) {
				c.cfg.Logger.Info("listing exhausted", "page", page, "last_page", res.LastPage, "cause", raah.Classify(err))
				res.Reason = StopEndOfData
				return res, nil
			}
			if ctx.Err() != nil {
				res.Reason = StopCancelled
				return res, ctx.Err()
			}
			res.Reason = StopError
			return res, fmt.Errorf("crawler: page %d: %w", page, err)
		}

		if p.EndOfData() {
			c.cfg.Logger.Info("listing exhausted", "page", page, "last_page", res.LastPage, "cause", "empty page")
			res.Reason = StopEndOfData
			return res, nil
		}

		res.LastPage = page
		res.Items += len(p.Items)
		metrics.PagesCrawled.Inc()

		if onPage != nil {
			if err := onPage(page, p); err != nil {
				res.Reason = StopError
				return res, err
			}
		}

		if page < c.cfg.MaxPages {
			if err := limiter.Wait(ctx); err != nil {
				res.Reason = StopCancelled
				return res, err
			}
		}
	}

	res.Reason = StopPageLimit
	return res, nil
}
