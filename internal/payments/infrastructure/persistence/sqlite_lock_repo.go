package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SQLiteLockRepository implements the per-subscription advisory lock as a
// conditional insert into the processing table.
type SQLiteLockRepository struct {
	db *sql.DB
}

// NewSQLiteLockRepository creates a new repository.
func NewSQLiteLockRepository(db *sql.DB) *SQLiteLockRepository {
	return &SQLiteLockRepository{db: db}
}

// TryAcquire inserts the lock row if absent. A conflicting insert means
// another settlement attempt holds the lock.
func (r *SQLiteLockRepository) TryAcquire(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processing_subscriptions (subscription_id, locked_at) VALUES (?, ?)`,
		subscriptionID.String(),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Release deletes the lock row unconditionally.
func (r *SQLiteLockRepository) Release(ctx context.Context, subscriptionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM processing_subscriptions WHERE subscription_id = ?`,
		subscriptionID.String(),
	)
	return err
}
