package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parsamap/raahgir/internal/storage"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
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
	rating DOUBLE PRECISION,
	rating_count INTEGER NOT NULL,
	lon DOUBLE PRECISION NOT NULL,
	lat DOUBLE PRECISION NOT NULL,
	source_index INTEGER NOT NULL,
	fetch_error TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS place_records_session ON place_records(session_id);
CREATE INDEX IF NOT EXISTS place_records_token ON place_records(token);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: creating schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, record *storage.PlaceRecord) error {
	query := `
	INSERT INTO place_records (
		id, session_id, token, name, category, address, phone, working_hours,
		rating, rating_count, lon, lat, source_index, fetch_error, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := b.pool.Exec(ctx, query,
		record.ID,
		record.SessionID,
		record.Token,
		record.Name,
		record.Category,
		record.Address,
		record.Phone,
		record.WorkingHours,
		record.Rating,
		record.RatingCount,
		record.Lon,
		record.Lat,
		record.SourceIndex,
		record.FetchError,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: saving record: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.PlaceRecord, error) {
	query := `SELECT id, session_id, token, name, category, address, phone, working_hours,
	rating, rating_count, lon, lat, source_index, fetch_error, created_at
	FROM place_records WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.SessionID != "" {
		query += fmt.Sprintf(` AND session_id = $%d`, paramCount)
		args = append(args, filter.SessionID)
		paramCount++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, paramCount)
		args = append(args, filter.Category)
		paramCount++
	}
	if filter.Token != "" {
		query += fmt.Sprintf(` AND token = $%d`, paramCount)
		args = append(args, filter.Token)
		paramCount++
	}
	if filter.WithError != nil {
		if *filter.WithError {
			query += ` AND fetch_error != ''`
		} else {
			query += ` AND fetch_error = ''`
		}
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
		paramCount++
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: querying records: %w", err)
	}
	defer rows.Close()

	var records []*storage.PlaceRecord
	for rows.Next() {
		var r storage.PlaceRecord
		err := rows.Scan(
			&r.ID, &r.SessionID, &r.Token, &r.Name, &r.Category, &r.Address,
			&r.Phone, &r.WorkingHours, &r.Rating, &r.RatingCount, &r.Lon, &r.Lat,
			&r.SourceIndex, &r.FetchError, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning record: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: reading rows: %w", err)
	}

	return records, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
