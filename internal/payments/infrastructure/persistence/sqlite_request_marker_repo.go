package persistence

import (
	"context"
	"database/sql"
	"time"
)

// SQLiteRequestMarkerRepository records resolved request ids with SQLite.
type SQLiteRequestMarkerRepository struct {
	db *sql.DB
}

// NewSQLiteRequestMarkerRepository creates a new repository.
func NewSQLiteRequestMarkerRepository(db *sql.DB) *SQLiteRequestMarkerRepository {
	return &SQLiteRequestMarkerRepository{db: db}
}

// MarkResolved persists the resolution marker for a request id.
func (r *SQLiteRequestMarkerRepository) MarkResolved(ctx context.Context, requestID string, approved bool) error {
	approvedInt := 0
	if approved {
		approvedInt = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO resolved_requests (request_id, approved, resolved_at) VALUES (?, ?, ?)`,
		requestID,
		approvedInt,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// IsResolved reports whether the request id has already been resolved.
func (r *SQLiteRequestMarkerRepository) IsResolved(ctx context.Context, requestID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM resolved_requests WHERE request_id = ?`, requestID,
	).Scan(&count)
	return count > 0, err
}
