package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/parsamap/raahgir/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a new NDJSON-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("jsonbackend: opening file: %w", err)
	}

	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Save(ctx context.Context, record *storage.PlaceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("jsonbackend: marshaling record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("jsonbackend: writing record: %w", err)
	}

	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.PlaceRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("jsonbackend: seeking: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)

	// NDJSON has no query engine; read everything, filter in memory,
	// then order and slice.
	var filtered []*storage.PlaceRecord

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r storage.PlaceRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("jsonbackend: decoding record: %w", err)
		}

		if !matches(&r, filter) {
			continue
		}
		filtered = append(filtered, &r)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonbackend: scanning file: %w", err)
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

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
