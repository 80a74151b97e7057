package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRequestMarkerRepository records resolved request ids with PostgreSQL.
type PostgresRequestMarkerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRequestMarkerRepository creates a new repository.
func NewPostgresRequestMarkerRepository(pool *pgxpool.Pool) *PostgresRequestMarkerRepository {
	return &PostgresRequestMarkerRepository{pool: pool}
}

// MarkResolved persists the resolution marker for a request id.
func (r *PostgresRequestMarkerRepository) MarkResolved(ctx context.Context, requestID string, approved bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO resolved_requests (request_id, approved, resolved_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (request_id) DO UPDATE SET approved = EXCLUDED.approved, resolved_at = EXCLUDED.resolved_at`,
		requestID, approved, time.Now().UTC(),
	)
	return err
}

// IsResolved reports whether the request id has already been resolved.
func (r *PostgresRequestMarkerRepository) IsResolved(ctx context.Context, requestID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM resolved_requests WHERE request_id = $1)`, requestID,
	).Scan(&exists)
	return exists, err
}
