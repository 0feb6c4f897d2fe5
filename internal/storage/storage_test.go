package storage

import (
	"context"
	"testing"
	"time"
)

// ensure PlaceRecord compiles and has the fields expected
func TestPlaceRecord_Types(t *testing.T) {
	rating := 4.5
	_ = PlaceRecord{
		ID:           "rec1",
		SessionID:    "sess1",
		Token:        "tok1",
		Name:         "کافه",
		Category:     "کافه",
		Address:      "خیابان",
		Phone:        "021-0000",
		WorkingHours: "شنبه ۸ تا ۲۰",
		Rating:       &rating,
		RatingCount:  3,
		Lon:          51.4,
		Lat:          35.7,
		SourceIndex:  0,
		FetchError:   "",
		CreatedAt:    time.Now(),
	}

	withErr := true
	now := time.Now()
	_ = Filter{
		SessionID: "sess1",
		Category:  "کافه",
		Token:     "tok1",
		WithError: &withErr,
		Since:     &now,
		Limit:     10,
		Offset:    0,
	}
}

// Ensure Backend interface exists and is implementable
type mockBackend struct{}

func (m *mockBackend) Save(ctx context.Context, record *PlaceRecord) error { return nil }
func (m *mockBackend) Query(ctx context.Context, filter Filter) ([]*PlaceRecord, error) {
	return nil, nil
}
func (m *mockBackend) Close() error { return nil }

func TestBackendInterface(t *testing.T) {
	var b Backend = &mockBackend{}
	_ = b
}
