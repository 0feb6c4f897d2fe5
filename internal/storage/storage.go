package storage

import (
	"context"
	"time"
)

// PlaceRecord is one collected place, flattened for persistence. Rating
// is nil when the place carries no score; FetchError is non-empty when
// detail enrichment failed and the display fields hold placeholders.
type PlaceRecord struct {
	ID           string
	SessionID    string
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
	SourceIndex  int // search point or page the record came from
	FetchError   string
	CreatedAt    time.Time
}

// Filter selects PlaceRecords in a Query.
type Filter struct {
	SessionID string
	Category  string
	Token     string
	WithError *bool
	Since     *time.Time
	Limit     int
	Offset    int
}

// Backend defines the interface for storing and querying place records.
type Backend interface {
	Save(ctx context.Context, record *PlaceRecord) error
	Query(ctx context.Context, filter Filter) ([]*PlaceRecord, error)
	Close() error
}
