// Package crawler implements the collection strategies on top of the
// raah client: a region-paginated page crawl, a multi-point polygon
// search, and detail enrichment of the collected tokens. Sessions tie a
// strategy run to cancellation, progress reporting, and the 429
// countdown shared by all calls of the run.
package crawler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/parsamap/raahgir/internal/raah"
	"github.com/parsamap/raahgir/internal/storage"
)

// Place is the in-memory form of a collected place. Records exist from
// the moment a token is known; enrichment fills the display fields in
// place, so a consumer always sees the full list with placeholders
// where detail is still missing or failed.
type Place struct {
	Token        string
	Name         string
	Category     string
	Address      string
	Phone        string
	WorkingHours string
	Rating       *float64
	RatingCount  int
	Lon          float64
	Lat          float64
	SourceIndex  int
	FetchError   raah.Kind // empty when enrichment succeeded
}

// NewPlacePending creates the placeholder record shown while a token's
// detail has not been fetched yet. Ordinal is 1-based.
func NewPlacePending(token string, ordinal, sourceIndex int) *Place {
	return &Place{
		Token:       token,
		Name:        fmt.Sprintf("مکان %d", ordinal),
		Category:    raah.CategoryUnknown,
		Address:     raah.AddressUnavailable,
		Phone:       raah.PhoneUnavailable,
		SourceIndex: sourceIndex,
	}
}

// FillFromDetail overwrites the placeholder fields with the fetched
// detail and clears any previous fetch error.
func (p *Place) FillFromDetail(d *raah.POIDetail) {
	if d.Name != "" {
		p.Name = d.Name
	}
	p.Category = d.CategoryName()
	p.Address = d.Address()
	p.Phone = d.Phone()
	p.WorkingHours = d.WorkingHours()
	p.Rating, p.RatingCount = d.Score()
	if lon, lat, ok := pointCoords(d.Geometry); ok {
		p.Lon, p.Lat = lon, lat
	}
	p.FetchError = ""
}

// MarkNotFound records a 404: the place is gone upstream, which is a
// terminal outcome rather than a retryable failure. The ordinal name
// stays; the detail fields carry the not-found marker.
func (p *Place) MarkNotFound() {
	p.Address = raah.PlaceNotFound
	p.Phone = raah.PlaceNotFound
	p.FetchError = raah.KindNotFound
}

// MarkFailed records a failed enrichment. The record keeps its ordinal
// name, the detail fields carry the failure marker, and the record can
// be retried manually.
func (p *Place) MarkFailed(kind raah.Kind) {
	p.Address = raah.FetchFailed
	p.Phone = raah.FetchFailed
	p.FetchError = kind
}

// Record flattens the place for persistence.
func (p *Place) Record(id, sessionID string, at time.Time) *storage.PlaceRecord {
	return &storage.PlaceRecord{
		ID:           id,
		SessionID:    sessionID,
		Token:        p.Token,
		Name:         p.Name,
		Category:     p.Category,
		Address:      p.Address,
		Phone:        p.Phone,
		WorkingHours: p.WorkingHours,
		Rating:       p.Rating,
		RatingCount:  p.RatingCount,
		Lon:          p.Lon,
		Lat:          p.Lat,
		SourceIndex:  p.SourceIndex,
		FetchError:   string(p.FetchError),
		CreatedAt:    at,
	}
}

// pointCoords extracts lon/lat from a Point geometry; non-points and
// malformed coordinate arrays report false.
func pointCoords(g *raah.Geometry) (lon, lat float64, ok bool) {
	if g == nil || g.Type != "Point" || len(g.Coordinates) == 0 {
		return 0, 0, false
	}
	var coords []float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil || len(coords) < 2 {
		return 0, 0, false
	}
	return coords[0], coords[1], true
}
