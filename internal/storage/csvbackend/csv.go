package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/parsamap/raahgir/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"session_id",
	"token",
	"name",
	"category",
	"address",
	"phone",
	"working_hours",
	"rating",
	"rating_count",
	"lon",
	"lat",
	"source_index",
	"fetch_error",
	"created_at",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: opening file: %w", err)
	}

	// Check if file is empty to write headers
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: stat: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: writing header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: flushing header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, record *storage.PlaceRecord) error {
	rating := ""
	if record.Rating != nil {
		rating = strconv.FormatFloat(*record.Rating, 'f', -1, 64)
	}

	row := []string{
		record.ID,
		record.SessionID,
		record.Token,
		record.Name,
		record.Category,
		record.Address,
		record.Phone,
		record.WorkingHours,
		rating,
		strconv.Itoa(record.RatingCount),
		strconv.FormatFloat(record.Lon, 'f', -1, 64),
		strconv.FormatFloat(record.Lat, 'f', -1, 64),
		strconv.Itoa(record.SourceIndex),
		record.FetchError,
		record.CreatedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csvbackend: seeking: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csvbackend: writing record: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: flushing record: %w", err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.PlaceRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: seeking: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvbackend: reading file: %w", err)
	}

	var filtered []*storage.PlaceRecord
	for i, row := range rows {
		if i == 0 {
			// header
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("csvbackend: row %d: %w", i, err)
		}
		if !matches(rec, filter) {
			continue
		}
		filtered = append(filtered, rec)
	}

	// Order by created_at DESC (reverse the append order)
	for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(filtered) {
			return []*storage.PlaceRecord{}, nil
		}
		filtered = filtered[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(filtered) {
		filtered = filtered[:filter.Limit]
	}

	return filtered, nil
}

func parseRow(row []string) (*storage.PlaceRecord, error) {
	if len(row) != len(headers) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(headers), len(row))
	}

	var rec storage.PlaceRecord
	rec.ID = row[0]
	rec.SessionID = row[1]
	rec.Token = row[2]
	rec.Name = row[3]
	rec.Category = row[4]
	rec.Address = row[5]
	rec.Phone = row[6]
	rec.WorkingHours = row[7]

	if row[8] != "" {
		v, err := strconv.ParseFloat(row[8], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing rating: %w", err)
		}
		rec.Rating = &v
	}

	var err error
	if rec.RatingCount, err = strconv.Atoi(row[9]); err != nil {
		return nil, fmt.Errorf("parsing rating_count: %w", err)
	}
	if rec.Lon, err = strconv.ParseFloat(row[10], 64); err != nil {
		return nil, fmt.Errorf("parsing lon: %w", err)
	}
	if rec.Lat, err = strconv.ParseFloat(row[11], 64); err != nil {
		return nil, fmt.Errorf("parsing lat: %w", err)
	}
	if rec.SourceIndex, err = strconv.Atoi(row[12]); err != nil {
		return nil, fmt.Errorf("parsing source_index: %w", err)
	}
	rec.FetchError = row[13]
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, row[14]); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &rec, nil
}

func matches(r *storage.PlaceRecord, filter storage.Filter) bool {
	if filter.SessionID != "" && r.SessionID != filter.SessionID {
		return false
	}
	if filter.Category != "" && r.Category != filter.Category {
		return false
	}
	if filter.Token != "" && r.Token != filter.Token {
		return false
	}
	if filter.WithError != nil && (r.FetchError != "") != *filter.WithError {
		return false
	}
	if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
		return false
	}
	return true
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
