package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// PostgresActivityRepository implements ActivityRepository with PostgreSQL.
type PostgresActivityRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresActivityRepository creates a new repository.
func NewPostgresActivityRepository(pool *pgxpool.Pool) *PostgresActivityRepository {
	return &PostgresActivityRepository{pool: pool}
}

// Add inserts a ledger entry.
func (r *PostgresActivityRepository) Add(ctx context.Context, a *domain.Activity) error {
	query := `
		INSERT INTO activities (
			id, type, service_key, service_name, detail, date,
			amount, currency, converted_amount, converted_currency,
			request_id, subscription_id, status, invoice
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID, string(a.Type), a.ServiceKey, a.ServiceName, a.Detail, a.Date.UTC(),
		a.Amount, a.Currency, a.ConvertedAmount, a.ConvertedCurrency,
		a.RequestID, a.SubscriptionID, string(a.Status), a.Invoice,
	)
	return err
}

// FindByID loads an activity by id, returning nil when absent.
func (r *PostgresActivityRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, selectActivityPostgres+` WHERE id = $1`, id)
	activity, err := scanPostgresActivity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return activity, err
}

// FindPendingWithInvoice returns settlement candidates for the monitor.
func (r *PostgresActivityRepository) FindPendingWithInvoice(ctx context.Context) ([]*domain.Activity, error) {
	rows, err := r.pool.Query(ctx,
		selectActivityPostgres+` WHERE status = $1 AND invoice != '' ORDER BY date`,
		string(domain.ActivityPending),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]*domain.Activity, 0)
	for rows.Next() {
		activity, err := scanPostgresActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

// UpdateStatus moves a pending activity to a terminal status. Terminal
// activities are never rewritten.
func (r *PostgresActivityRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ActivityStatus, detail string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot transition activity to non-terminal status %q", status)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE activities SET status = $1, detail = $2 WHERE id = $3 AND status = $4`,
		string(status), detail, id, string(domain.ActivityPending),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		existing, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrActivityNotFound
		}
		return domain.ErrActivityTerminal
	}
	return nil
}

// HasRequestID reports whether any activity exists for the request id.
func (r *PostgresActivityRepository) HasRequestID(ctx context.Context, requestID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM activities WHERE request_id = $1)`, requestID,
	).Scan(&exists)
	return exists, err
}

const selectActivityPostgres = `
	SELECT id, type, service_key, service_name, detail, date,
		amount, currency, converted_amount, converted_currency,
		request_id, subscription_id, status, invoice
	FROM activities`

func scanPostgresActivity(row pgx.Row) (*domain.Activity, error) {
	var (
		a      domain.Activity
		typ    string
		status string
	)
	err := row.Scan(&a.ID, &typ, &a.ServiceKey, &a.ServiceName, &a.Detail, &a.Date,
		&a.Amount, &a.Currency, &a.ConvertedAmount, &a.ConvertedCurrency,
		&a.RequestID, &a.SubscriptionID, &status, &a.Invoice)
	if err != nil {
		return nil, err
	}
	a.Type = domain.ActivityType(typ)
	a.Status = domain.ActivityStatus(status)
	return &a, nil
}
