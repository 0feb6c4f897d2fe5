package raah

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/parsamap/raahgir/internal/fingerprint"
	"github.com/parsamap/raahgir/internal/geo"
	"github.com/parsamap/raahgir/internal/metrics"
	"github.com/parsamap/raahgir/pkg/httpclient"
	"github.com/parsamap/raahgir/pkg/useragent"
)

// Default endpoints of the public Raah service.
const (
	DefaultSearchBaseURL  = "https://search.raah.ir"
	DefaultPOIBaseURL     = "https://poi.raah.ir"
	DefaultReverseBaseURL = "https://reverse-geocoding.raah.ir"
)

// BackoffFunc pauses for a 429 cool-down. A session wires its visible
// countdown here; the default implementation just sleeps.
type BackoffFunc func(ctx context.Context, d time.Duration) error

// Config configures a Client. Zero values pick the defaults noted.
type Config struct {
	SearchBaseURL  string // DefaultSearchBaseURL
	POIBaseURL     string // DefaultPOIBaseURL
	ReverseBaseURL string // DefaultReverseBaseURL

	Timeout        time.Duration // per-attempt timeout, 10s
	ReverseTimeout time.Duration // reverse geocoding timeout, 15s
	Attempts       int           // attempts per request, 3
	RetryPause     time.Duration // pause between failed attempts, 2s
	ListingBackoff time.Duration // 429 pause for listing/search calls, 5s
	DetailBackoff  time.Duration // 429 pause for detail calls, 10s

	Fingerprint fingerprint.Profile
	UAPool      *useragent.Pool
	Logger      *slog.Logger
	Backoff     BackoffFunc
}

// Client issues rate-limit-aware requests against the Raah endpoints.
// Each call runs up to Attempts attempts with a fixed pause between
// them; 429 responses pause for the endpoint's backoff window and retry
// WITHOUT consuming an attempt (bounded only by context cancellation,
// matching the upstream's eventually-yielding limiter); 404 returns
// ErrNotFound immediately.
type Client struct {
	cfg  Config
	http *httpclient.Client
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.SearchBaseURL == "" {
		cfg.SearchBaseURL = DefaultSearchBaseURL
	}
	if cfg.POIBaseURL == "" {
		cfg.POIBaseURL = DefaultPOIBaseURL
	}
	if cfg.ReverseBaseURL == "" {
		cfg.ReverseBaseURL = DefaultReverseBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReverseTimeout == 0 {
		cfg.ReverseTimeout = 15 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryPause == 0 {
		cfg.RetryPause = 2 * time.Second
	}
	if cfg.ListingBackoff == 0 {
		cfg.ListingBackoff = 5 * time.Second
	}
	if cfg.DetailBackoff == 0 {
		cfg.DetailBackoff = 10 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Backoff == nil {
		cfg.Backoff = sleepBackoff
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("raah: setting up transport: %w", err)
	}

	// The client-level timeout is the largest per-call timeout; each
	// attempt narrows it through its context.
	client, err := httpclient.New(httpclient.Config{
		Timeout:      maxDuration(cfg.Timeout, cfg.ReverseTimeout),
		MaxRedirects: 3,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("raah: creating client: %w", err)
	}

	return &Client{cfg: cfg, http: client}, nil
}

// Categories fetches and flattens the category list.
func (c *Client) Categories(ctx context.Context) ([]CategoryOption, error) {
	body, err := c.do(ctx, "bundle-list", c.cfg.SearchBaseURL+"/v6/bundle-list/full/", c.cfg.ListingBackoff, c.cfg.Timeout)
	if err != nil {
		return nil, err
	}

	var parsed categoryListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: bundle-list: %v", ErrMalformed, err)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("%w: bundle-list: empty results", ErrMalformed)
	}

	var options []CategoryOption
	for _, group := range parsed.Results {
		for _, cat := range group.Categories {
			options = append(options, CategoryOption{
				Slug:    cat.Slug,
				Display: group.Title + " > " + cat.Name,
			})
		}
	}
	return options, nil
}

// CategoriesOrFallback returns the live category list, substituting the
// static fallback when the fetch fails so a session is never blocked on
// setup.
func (c *Client) CategoriesOrFallback(ctx context.Context) []CategoryOption {
	options, err := c.Categories(ctx)
	if err != nil {
		c.cfg.Logger.Warn("category fetch failed, using fallback list", "err", err)
		return FallbackCategories
	}
	return options
}

// ListPage fetches one page of the region-paginated listing for a city
// and category. A 404 surfaces as ErrNotFound; an unparseable body as
// ErrMalformed. Both are end-of-data signals for the paged crawl.
func (c *Client) ListPage(ctx context.Context, citySlug, categorySlug string, page int) (*PlacesPage, error) {
	u := fmt.Sprintf("%s/v4/placeslist/cat/?region=city-%s&name=%s&page=%d",
		c.cfg.SearchBaseURL, url.QueryEscape(citySlug), url.QueryEscape(categorySlug), page)

	body, err := c.do(ctx, "placeslist", u, c.cfg.ListingBackoff, c.cfg.Timeout)
	if err != nil {
		return nil, err
	}

	var parsed PlacesPage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: placeslist page %d: %v", ErrMalformed, page, err)
	}
	return &parsed, nil
}

// BundleSearch runs the polygon/camera search for a category.
func (c *Client) BundleSearch(ctx context.Context, categorySlug string, polygon []geo.Point, zoom int, camera geo.Point) (*BundleSearchResult, error) {
	params := url.Values{}
	params.Set("slug", categorySlug)
	params.Set("polygon", formatPolygon(polygon))
	params.Set("zoom", strconv.Itoa(zoom))
	params.Set("camera", formatPoint(camera))

	u := c.cfg.SearchBaseURL + "/v4/bundle-search/?" + params.Encode()
	body, err := c.do(ctx, "bundle-search", u, c.cfg.ListingBackoff, c.cfg.Timeout)
	if err != nil {
		return nil, err
	}

	var parsed BundleSearchResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: bundle-search: %v", ErrMalformed, err)
	}
	return &parsed, nil
}

// Detail fetches the free-form detail record of a POI token. Uses the
// longer detail backoff window on 429.
func (c *Client) Detail(ctx context.Context, token string) (*POIDetail, error) {
	u := c.cfg.POIBaseURL + "/web/v4/" + url.PathEscape(token) + "?format=json"
	body, err := c.do(ctx, "poi-detail", u, c.cfg.DetailBackoff, c.cfg.Timeout)
	if err != nil {
		return nil, err
	}

	var parsed POIDetail
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: poi-detail %s: %v", ErrMalformed, token, err)
	}
	return &parsed, nil
}

// ReverseGeocode fetches the reverse-geocoding features for a point,
// returning the raw JSON body.
func (c *Client) ReverseGeocode(ctx context.Context, lon, lat float64, resultType string) ([]byte, error) {
	u := fmt.Sprintf("%s/v1/features?result_type=%s&location=%s,%s",
		c.cfg.ReverseBaseURL,
		url.QueryEscape(resultType),
		url.QueryEscape(formatCoord(lon)),
		url.QueryEscape(formatCoord(lat)))

	return c.do(ctx, "reverse-geocode", u, c.cfg.ListingBackoff, c.cfg.ReverseTimeout)
}

// do runs the retry loop for a single logical request. Transient
// failures and unexpected statuses consume one of the configured
// attempts each, with a fixed pause in between; 429 pauses via the
// backoff hook and retries with the attempt counter untouched.
func (c *Client) do(ctx context.Context, endpoint, rawURL string, backoff, timeout time.Duration) ([]byte, error) {
	var lastErr error

	attempt := 0
	for attempt < c.cfg.Attempts {
		body, status, err := c.get(ctx, endpoint, rawURL, timeout)
		if err != nil {
			lastErr = err
			attempt++
			c.cfg.Logger.Debug("request failed", "endpoint", endpoint, "attempt", attempt, "err", err)
			if attempt >= c.cfg.Attempts {
				break
			}
			if err := sleepCtx(ctx, c.cfg.RetryPause); err != nil {
				return nil, err
			}
			continue
		}

		if status == http.StatusNotFound {
			return nil, ErrNotFound
		}

		if status == http.StatusTooManyRequests {
			metrics.RateLimitWaits.WithLabelValues(endpoint).Inc()
			c.cfg.Logger.Info("rate limited, backing off", "endpoint", endpoint, "pause", backoff)
			if err := c.cfg.Backoff(ctx, backoff); err != nil {
				return nil, err
			}
			continue
		}

		if status >= 200 && status < 300 {
			return body, nil
		}

		lastErr = &StatusError{Code: status}
		attempt++
		if attempt >= c.cfg.Attempts {
			break
		}
		if err := sleepCtx(ctx, c.cfg.RetryPause); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// get performs one attempt with its own timeout.
func (c *Client) get(ctx context.Context, endpoint, rawURL string, timeout time.Duration) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("raah: creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UAPool.Next())
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordRequest(endpoint, 0, err, duration)
		return nil, 0, err
	}
	defer resp.Body.Close()

	metrics.RecordRequest(endpoint, resp.StatusCode, nil, duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("raah: reading body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func formatPolygon(polygon []geo.Point) string {
	out := make([]byte, 0, len(polygon)*16)
	for i, p := range polygon {
		if i > 0 {
			out = append(out, '|')
		}
		out = append(out, formatPoint(p)...)
	}
	return string(out)
}

func formatPoint(p geo.Point) string {
	return formatCoord(p.Lon()) + "," + formatCoord(p.Lat())
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sleepBackoff(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
