package raah

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parsamap/raahgir/internal/geo"
)

// fastClient returns a client aimed at ts with pauses short enough for tests.
func fastClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{
		SearchBaseURL:  ts.URL,
		POIBaseURL:     ts.URL,
		ReverseBaseURL: ts.URL,
		Timeout:        2 * time.Second,
		RetryPause:     10 * time.Millisecond,
		ListingBackoff: 20 * time.Millisecond,
		DetailBackoff:  20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return c
}

func TestClient_ListPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("region") != "city-tehran" || q.Get("name") != "cafe" || q.Get("page") != "2" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"slug":"cafe","items":["t1","t2"],"item_element_list":[{},{}]}`))
	}))
	defer ts.Close()

	c := fastClient(t, ts)
	page, err := c.ListPage(context.Background(), "tehran", "cafe", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0] != "t1" {
		t.Errorf("unexpected items: %v", page.Items)
	}
	if page.EndOfData() {
		t.Errorf("valid page must not signal end of data")
	}
}

func TestClient_ListPage_NotFound(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := fastClient(t, ts)
	_, err := c.ListPage(context.Background(), "tehran", "cafe", 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("404 is authoritative, expected 1 call, got %d", calls.Load())
	}
}

func TestClient_RetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := fastClient(t, ts)
	_, err := c.ListPage(context.Background(), "tehran", "cafe", 1)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != 500 {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls.Load())
	}
}

func TestClient_RateLimitDoesNotConsumeBudget(t *testing.T) {
	// Four 429s followed by success: with a 3-attempt budget this only
	// works if 429 pauses never count as attempts.
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 4 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"slug":"cafe","items":["t1"],"item_element_list":[{}]}`))
	}))
	defer ts.Close()

	var pauses atomic.Int32
	c := fastClient(t, ts)
	c.cfg.Backoff = func(ctx context.Context, d time.Duration) error {
		pauses.Add(1)
		return nil
	}

	page, err := c.ListPage(context.Background(), "tehran", "cafe", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(page.Items))
	}
	if pauses.Load() != 4 {
		t.Errorf("expected 4 backoff pauses, got %d", pauses.Load())
	}
}

func TestClient_RateLimitBackoffCancellable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := fastClient(t, ts)
	ctx, cancel := context.WithCancel(context.Background())
	c.cfg.Backoff = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if _, err := c.ListPage(ctx, "tehran", "cafe", 1); err == nil {
		t.Errorf("expected error after cancelled backoff")
	}
}

func TestClient_BundleSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("slug") != "cafe" || q.Get("zoom") != "14" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("polygon") != "1,2|3,4|5,6" {
			t.Errorf("unexpected polygon encoding: %q", q.Get("polygon"))
		}
		if q.Get("camera") != "2,3" {
			t.Errorf("unexpected camera encoding: %q", q.Get("camera"))
		}
		_, _ = w.Write([]byte(`{
			"geojson": {"features": [
				{"type":"Feature","properties":{"name":"X","token":"tok1"},"geometry":{"type":"Point","coordinates":[1.5,2.5]}}
			]},
			"poi-tokens": ["tok1"]
		}`))
	}))
	defer ts.Close()

	c := fastClient(t, ts)
	polygon := []geo.Point{{1, 2}, {3, 4}, {5, 6}}
	res, err := c.BundleSearch(context.Background(), "cafe", polygon, 14, geo.Point{2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.GeoJSON.Features) != 1 || res.GeoJSON.Features[0].Properties.Token != "tok1" {
		t.Errorf("unexpected features: %+v", res.GeoJSON.Features)
	}
	if len(res.POITokens) != 1 {
		t.Errorf("expected 1 poi token, got %d", len(res.POITokens))
	}
}

func TestClient_Detail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/web/v4/tok1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"name": "کافه نمونه",
			"category": "کافه",
			"rating": {"score": 4.2, "count": 17},
			"fields": [{"type":"text","icon":"gps","value":"خیابان ولیعصر"}]
		}`))
	}))
	defer ts.Close()

	c := fastClient(t, ts)
	d, err := c.Detail(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "کافه نمونه" {
		t.Errorf("unexpected name: %q", d.Name)
	}
	if d.Address() != "خیابان ولیعصر" {
		t.Errorf("unexpected address: %q", d.Address())
	}
	score, count := d.Score()
	if score == nil || *score != 4.2 || count != 17 {
		t.Errorf("unexpected rating: %v %d", score, count)
	}
}

func TestClient_Detail_Malformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>definitely not json</html>`))
	}))
	defer ts.Close()

	c := fastClient(t, ts)
	_, err := c.Detail(context.Background(), "tok1")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestClient_Categories(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"title":"خوراک","categories":[{"slug":"cafe","name":"کافه"},{"slug":"restaurant","name":"رستوران"}]},
			{"title":"خرید","categories":[{"slug":"bakery","name":"نانوایی"}]}
		]}`))
	}))
	defer ts.Close()

	c := fastClient(t, ts)
	options, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(options) != 3 {
		t.Fatalf("expected 3 flattened options, got %d", len(options))
	}
	if options[0].Display != "خوراک > کافه" {
		t.Errorf("unexpected display: %q", options[0].Display)
	}
}

func TestClient_CategoriesOrFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := fastClient(t, ts)
	options := c.CategoriesOrFallback(context.Background())
	if len(options) != len(FallbackCategories) {
		t.Fatalf("expected the fallback list, got %d options", len(options))
	}
}

func TestClient_ReverseGeocode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("result_type") != "neighborhood" || q.Get("location") != "51.4,35.7" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer ts.Close()

	c := fastClient(t, ts)
	body, err := c.ReverseGeocode(context.Background(), 51.4, 35.7, "neighborhood")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"features":[]}` {
		t.Errorf("unexpected body: %s", body)
	}
}
