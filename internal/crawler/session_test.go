package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parsamap/raahgir/internal/geo"
	"github.com/parsamap/raahgir/internal/raah"
	"github.com/parsamap/raahgir/internal/storage"
)

type memStore struct {
	mu   sync.Mutex
	recs []*storage.PlaceRecord
}

func (m *memStore) Save(ctx context.Context, rec *storage.PlaceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) Query(ctx context.Context, f storage.Filter) ([]*storage.PlaceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*storage.PlaceRecord(nil), m.recs...), nil
}

func (m *memStore) Close() error { return nil }

func testFactory(ts *httptest.Server) ClientFactory {
	return func(backoff raah.BackoffFunc) (*raah.Client, error) {
		return raah.New(raah.Config{
			SearchBaseURL:  ts.URL,
			POIBaseURL:     ts.URL,
			ReverseBaseURL: ts.URL,
			Timeout:        2 * time.Second,
			RetryPause:     5 * time.Millisecond,
			ListingBackoff: 10 * time.Millisecond,
			DetailBackoff:  10 * time.Millisecond,
			Backoff:        backoff,
		})
	}
}

func TestManager_StartCancelsPrevious(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	m := NewManager(ManagerConfig{Client: testFactory(ts)})

	s1, err := m.Start("cafe")
	if err != nil {
		t.Fatalf("starting first session: %v", err)
	}
	s2, err := m.Start("restaurant")
	if err != nil {
		t.Fatalf("starting second session: %v", err)
	}

	if s1.ID() == s2.ID() {
		t.Error("sessions must have distinct ids")
	}
	if got := s1.Status().Phase; got != PhaseCancelled {
		t.Errorf("first session phase = %s, want cancelled", got)
	}
	if m.Current() != s2 {
		t.Error("current session must be the new one")
	}
}

func TestSession_CrawlCity(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "placeslist"):
			if r.URL.Query().Get("page") == "1" {
				_, _ = w.Write([]byte(pageJSON("cafe", "a", "b")))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case strings.Contains(r.URL.Path, "/web/v4/a"):
			_, _ = w.Write([]byte(`{"name":"کافه الف","category":"کافه","geometry":{"type":"Point","coordinates":[51.1,35.1]}}`))
		case strings.Contains(r.URL.Path, "/web/v4/b"):
			_, _ = w.Write([]byte(`{"name":"کافه ب","category":"کافه"}`))
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer ts.Close()

	store := &memStore{}
	m := NewManager(ManagerConfig{Client: testFactory(ts), Store: store})
	s, err := m.Start("cafe")
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}

	if err := s.CrawlCity("tehran"); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	if got := s.Status().Phase; got != PhaseDone {
		t.Errorf("phase = %s, want done", got)
	}

	places := s.Places()
	if len(places) != 2 {
		t.Fatalf("places = %d, want 2", len(places))
	}
	if places[0].Name != "کافه الف" || places[1].Name != "کافه ب" {
		t.Errorf("names = %q, %q", places[0].Name, places[1].Name)
	}
	if places[0].Lon != 51.1 {
		t.Errorf("coordinates not filled: %+v", places[0])
	}

	if len(store.recs) != 2 {
		t.Fatalf("stored records = %d, want 2", len(store.recs))
	}
	for _, rec := range store.recs {
		if rec.SessionID != s.ID() {
			t.Errorf("record session = %q, want %q", rec.SessionID, s.ID())
		}
	}
}

func TestSession_SnapshotsSafeDuringCrawl(t *testing.T) {
	// Status and Places are polled from another goroutine while the
	// crawl is mutating records, the way a rendering caller would.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "placeslist"):
			if r.URL.Query().Get("page") == "1" {
				_, _ = w.Write([]byte(pageJSON("cafe", "r1", "r2", "r3", "r4")))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			time.Sleep(2 * time.Millisecond)
			_, _ = w.Write([]byte(`{"name":"کافه نو","category":"کافه","geometry":{"type":"Point","coordinates":[51.3,35.3]}}`))
		}
	}))
	defer ts.Close()

	m := NewManager(ManagerConfig{Client: testFactory(ts)})
	s, err := m.Start("cafe")
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, p := range s.Places() {
				_ = p.Name
				_ = p.Address
				_ = p.Rating
			}
			_ = s.Status()
		}
	}()

	if err := s.CrawlCity("tehran"); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	close(stop)
	wg.Wait()

	places := s.Places()
	if len(places) != 4 {
		t.Fatalf("places = %d, want 4", len(places))
	}
	for _, p := range places {
		if p.Name != "کافه نو" || p.FetchError != "" {
			t.Errorf("place not enriched: %+v", p)
		}
	}
}

func TestSession_SearchPolygon(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "bundle-search"):
			_, _ = w.Write([]byte(`{"geojson":{"features":[
				{"type":"Feature","properties":{"name":"کافه یک","token":"t1"},"geometry":{"type":"Point","coordinates":[0.5,0.5]}}
			]},"poi-tokens":["t1"]}`))
		case strings.Contains(r.URL.Path, "/web/v4/t1"):
			_, _ = w.Write([]byte(`{"name":"کافه یک","category":"کافه","rating":{"score":4.5,"count":9}}`))
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer ts.Close()

	m := NewManager(ManagerConfig{Client: testFactory(ts)})
	s, err := m.Start("cafe")
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}

	ring := geo.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	if err := s.SearchPolygon(ring, 4, 0); err != nil {
		t.Fatalf("search failed: %v", err)
	}

	st := s.Status()
	if st.Phase != PhaseDone {
		t.Errorf("phase = %s, want done", st.Phase)
	}
	if st.PointsTotal == 0 || st.PointsCompleted != st.PointsTotal {
		t.Errorf("point progress = %d/%d", st.PointsCompleted, st.PointsTotal)
	}
	if st.Enriched != 1 {
		t.Errorf("enriched = %d, want 1", st.Enriched)
	}

	places := s.Places()
	if len(places) != 1 {
		t.Fatalf("places = %d, want 1 after dedupe", len(places))
	}
	if places[0].Rating == nil || *places[0].Rating != 4.5 {
		t.Errorf("rating = %v", places[0].Rating)
	}
}

func TestSession_SearchPerimeter(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "bundle-search"):
			_, _ = w.Write([]byte(`{"geojson":{"features":[]},"poi-tokens":["p1"]}`))
		case strings.Contains(r.URL.Path, "/web/v4/p1"):
			_, _ = w.Write([]byte(`{"name":"مکان مرزی","category":"پارک"}`))
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer ts.Close()

	m := NewManager(ManagerConfig{Client: testFactory(ts)})
	s, err := m.Start("park")
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}

	// A step larger than any edge yields one camera per vertex.
	ring := geo.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	if err := s.SearchPerimeter(ring, 2, 0); err != nil {
		t.Fatalf("perimeter search failed: %v", err)
	}

	st := s.Status()
	if st.Phase != PhaseDone {
		t.Errorf("phase = %s, want done", st.Phase)
	}
	if st.PointsTotal != 4 {
		t.Errorf("points total = %d, want one camera per vertex", st.PointsTotal)
	}
	if places := s.Places(); len(places) != 1 || places[0].Name != "مکان مرزی" {
		t.Errorf("places = %+v", places)
	}
}

func TestSession_SearchPolygon_DegenerateRing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no requests expected for a degenerate polygon")
	}))
	defer ts.Close()

	m := NewManager(ManagerConfig{Client: testFactory(ts)})
	s, err := m.Start("cafe")
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}

	if err := s.SearchPolygon(geo.Ring{{0, 0}, {1, 1}}, 4, 0); err == nil {
		t.Fatal("expected an error for a two-vertex ring")
	}
	if got := s.Status().Phase; got != PhaseError {
		t.Errorf("phase = %s, want error", got)
	}
}

func TestSession_RetryPlace_UnknownToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	m := NewManager(ManagerConfig{Client: testFactory(ts)})
	s, err := m.Start("cafe")
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}

	if err := s.RetryPlace("nope"); err == nil {
		t.Fatal("expected an error for an unknown token")
	}
}
