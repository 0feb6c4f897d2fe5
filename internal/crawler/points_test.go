package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/parsamap/raahgir/internal/geo"
	"github.com/parsamap/raahgir/internal/raah"
)

var testRing = geo.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

func TestPointSearch_DedupesAcrossPoints(t *testing.T) {
	// Every point returns the same two features plus one unique to the
	// point, so overlap is the common case.
	var call atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := call.Add(1)
		unique := strconv.Itoa(int(n))
		_, _ = w.Write([]byte(`{"geojson":{"features":[
			{"type":"Feature","properties":{"name":"shared1","token":"s1"},"geometry":{"type":"Point","coordinates":[51.1,35.1]}},
			{"type":"Feature","properties":{"name":"shared2","token":"s2"},"geometry":{"type":"Point","coordinates":[51.2,35.2]}},
			{"type":"Feature","properties":{"name":"only` + unique + `","token":"u` + unique + `"},"geometry":{"type":"Point","coordinates":[51.` + unique + `9,35.9]}}
		]},"poi-tokens":["s1","s2","u` + unique + `"]}`))
	}))
	defer ts.Close()

	points := []geo.Point{{0.2, 0.2}, {0.5, 0.5}, {0.8, 0.8}}
	var features []string
	res, err := NewPointSearcher(newTestClient(t, ts), PointSearchConfig{}).Run(
		context.Background(), "cafe", testRing, points, nil,
		func(f raah.Feature, sourceIndex int) {
			features = append(features, f.Properties.Token)
		},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// 2 shared + 3 unique distinct features.
	if len(features) != 5 {
		t.Errorf("distinct features = %d (%v), want 5", len(features), features)
	}
	if len(res.Tokens) != 5 {
		t.Errorf("distinct tokens = %d (%v), want 5", len(res.Tokens), res.Tokens)
	}
	for i, st := range res.States {
		if st.Status != PointDone {
			t.Errorf("point %d status = %s, want done", i, st.Status)
		}
	}
	if res.States[0].Features != 3 || res.States[1].Features != 1 || res.States[2].Features != 1 {
		t.Errorf("per-point fresh counts = %+v", res.States)
	}
}

func TestPointSearch_FailedPointDoesNotAbort(t *testing.T) {
	var call atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The second point fails all its attempts.
		if call.Add(1) >= 2 && call.Load() <= 4 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		n := strconv.Itoa(int(call.Load()))
		_, _ = w.Write([]byte(`{"geojson":{"features":[
			{"type":"Feature","properties":{"token":"t` + n + `"},"geometry":{"type":"Point","coordinates":[51.` + n + `,35.5]}}
		]},"poi-tokens":[]}`))
	}))
	defer ts.Close()

	points := []geo.Point{{0.2, 0.2}, {0.5, 0.5}, {0.8, 0.8}}
	var progress []PointProgress
	res, err := NewPointSearcher(newTestClient(t, ts), PointSearchConfig{}).Run(
		context.Background(), "cafe", testRing, points,
		func(p PointProgress) { progress = append(progress, p) },
		nil,
	)
	if err != nil {
		t.Fatalf("run must survive a failed point: %v", err)
	}

	if res.Errors != 1 {
		t.Errorf("errors = %d, want 1", res.Errors)
	}
	if res.States[0].Status != PointDone || res.States[1].Status != PointError || res.States[2].Status != PointDone {
		t.Errorf("states = %+v", res.States)
	}
	if res.States[1].Err == nil {
		t.Errorf("failed point must carry its error")
	}

	// Progress fires once per point and only moves forward.
	if len(progress) != 3 {
		t.Fatalf("progress updates = %d, want 3", len(progress))
	}
	for i, p := range progress {
		if p.Completed != i+1 || p.Total != 3 {
			t.Errorf("progress[%d] = %+v", i, p)
		}
	}
}

func TestPointSearch_EmptyResultStaysPending(t *testing.T) {
	// Point 1 finds a feature, point 2 returns an empty result, point 3
	// returns only a duplicate of point 1's feature.
	var call atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if call.Add(1) == 2 {
			_, _ = w.Write([]byte(`{"geojson":{"features":[]},"poi-tokens":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"geojson":{"features":[
			{"type":"Feature","properties":{"name":"یگانه","token":"t1"},"geometry":{"type":"Point","coordinates":[51.1,35.1]}}
		]},"poi-tokens":[]}`))
	}))
	defer ts.Close()

	points := []geo.Point{{0.2, 0.2}, {0.5, 0.5}, {0.8, 0.8}}
	res, err := NewPointSearcher(newTestClient(t, ts), PointSearchConfig{}).Run(
		context.Background(), "cafe", testRing, points, nil, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.States[0].Status != PointDone || res.States[0].Features != 1 {
		t.Errorf("point 0 = %+v, want done with 1 feature", res.States[0])
	}
	// An attempted point with nothing returned is not done.
	if res.States[1].Status != PointPending {
		t.Errorf("point 1 status = %s, want pending", res.States[1].Status)
	}
	// A point returning only duplicates is done with zero fresh features.
	if res.States[2].Status != PointDone || res.States[2].Features != 0 {
		t.Errorf("point 2 = %+v, want done with 0 fresh features", res.States[2])
	}
	if res.Errors != 0 {
		t.Errorf("errors = %d, want 0", res.Errors)
	}
}

func TestPointSearch_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		_, _ = w.Write([]byte(`{"geojson":{"features":[]},"poi-tokens":[]}`))
	}))
	defer ts.Close()

	points := []geo.Point{{0.2, 0.2}, {0.5, 0.5}}
	_, err := NewPointSearcher(newTestClient(t, ts), PointSearchConfig{}).Run(
		ctx, "cafe", testRing, points, nil, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
