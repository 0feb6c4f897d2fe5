package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/parsamap/raahgir/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS place_records (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	token TEXT NOT NULL,
	name TEXT NOT NULL,
	category TEXT,
	address TEXT,
	phone TEXT,
	working_hours TEXT,
	rating REAL,
	rating_count INTEGER NOT NULL,
	lon REAL NOT NULL,
	lat REAL NOT NULL,
	source_index INTEGER NOT NULL,
	fetch_error TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS place_records_session ON place_records(session_id);
CREATE INDEX IF NOT EXISTS place_records_token ON place_records(token);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: creating schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, record *storage.PlaceRecord) error {
	query := `
	INSERT INTO place_records (
		id, session_id, token, name, category, address, phone, working_hours,
		rating, rating_count, lon, lat, source_index, fetch_error, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var rating sql.NullFloat64
	if record.Rating != nil {
		rating = sql.NullFloat64{Float64: *record.Rating, Valid: true}
	}

	_, err := b.db.ExecContext(ctx, query,
		record.ID,
		record.SessionID,
		record.Token,
		record.Name,
		record.Category,
		record.Address,
		record.Phone,
		record.WorkingHours,
		rating,
		record.RatingCount,
		record.Lon,
		record.Lat,
		record.SourceIndex,
		record.FetchError,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving record: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.PlaceRecord, error) {
	query := `SELECT id, session_id, token, name, category, address, phone, working_hours,
	rating, rating_count, lon, lat, source_index, fetch_error, created_at
	FROM place_records WHERE 1=1`
	args := []any{}

	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Token != "" {
		query += ` AND token = ?`
		args = append(args, filter.Token)
	}
	if filter.WithError != nil {
		if *filter.WithError {
			query += ` AND fetch_error != ''`
		} else {
			query += ` AND fetch_error = ''`
		}
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying records: %w", err)
	}
	defer rows.Close()

	var records []*storage.PlaceRecord
	for rows.Next() {
		var r storage.PlaceRecord
		var rating sql.NullFloat64

		err := rows.Scan(
			&r.ID, &r.SessionID, &r.Token, &r.Name, &r.Category, &r.Address,
			&r.Phone, &r.WorkingHours, &rating, &r.RatingCount, &r.Lon, &r.Lat,
			&r.SourceIndex, &r.FetchError, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning record: %w", err)
		}

		if rating.Valid {
			v := rating.Float64
			r.Rating = &v
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: reading rows: %w", err)
	}

	return records, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
