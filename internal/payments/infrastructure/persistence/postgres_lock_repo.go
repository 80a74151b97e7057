package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLockRepository implements the per-subscription advisory lock as a
// conditional insert into the processing table.
type PostgresLockRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresLockRepository creates a new repository.
func NewPostgresLockRepository(pool *pgxpool.Pool) *PostgresLockRepository {
	return &PostgresLockRepository{pool: pool}
}

// TryAcquire inserts the lock row if absent. A conflicting insert means
// another settlement attempt holds the lock.
func (r *PostgresLockRepository) TryAcquire(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO processing_subscriptions (subscription_id, locked_at)
		 VALUES ($1, $2) ON CONFLICT (subscription_id) DO NOTHING`,
		subscriptionID, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release deletes the lock row unconditionally.
func (r *PostgresLockRepository) Release(ctx context.Context, subscriptionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM processing_subscriptions WHERE subscription_id = $1`,
		subscriptionID,
	)
	return err
}
