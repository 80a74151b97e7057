package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// PostgresSubscriptionRepository implements SubscriptionRepository with PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionRepository creates a new repository.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Add inserts a subscription.
func (r *PostgresSubscriptionRepository) Add(ctx context.Context, s *domain.Subscription) error {
	now := time.Now().UTC()
	createdAt := now
	if !s.CreatedAt.IsZero() {
		createdAt = s.CreatedAt.UTC()
	}

	query := `
		INSERT INTO subscriptions (
			id, service_key, service_name, amount, currency, recurrence,
			max_payments, until, first_payment_due, status,
			last_payment_date, next_payment_date, payment_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.ServiceKey, s.ServiceName, s.Amount, s.Currency, s.Recurrence,
		s.MaxPayments, s.Until, s.FirstPaymentDue.UTC(), string(s.Status),
		s.LastPaymentDate, s.NextPaymentDate, s.PaymentCount,
		createdAt, now,
	)
	return err
}

// FindByID loads a subscription by id, returning nil when absent.
func (r *PostgresSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	query := `
		SELECT id, service_key, service_name, amount, currency, recurrence,
			max_payments, until, first_payment_due, status,
			last_payment_date, next_payment_date, payment_count,
			created_at, updated_at
		FROM subscriptions WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var (
		s      domain.Subscription
		status string
	)
	err := row.Scan(&s.ID, &s.ServiceKey, &s.ServiceName, &s.Amount, &s.Currency,
		&s.Recurrence, &s.MaxPayments, &s.Until, &s.FirstPaymentDue, &status,
		&s.LastPaymentDate, &s.NextPaymentDate, &s.PaymentCount,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Status = domain.SubscriptionStatus(status)
	return &s, nil
}

// UpdateLastPayment advances the payment cursor after a confirmed charge.
func (r *PostgresSubscriptionRepository) UpdateLastPayment(ctx context.Context, id uuid.UUID, paidAt time.Time, next *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET last_payment_date = $1, next_payment_date = $2,
			payment_count = payment_count + 1, updated_at = $3
		WHERE id = $4`,
		paidAt.UTC(), next, time.Now().UTC(), id,
	)
	return err
}

// UpdateStatus transitions the subscription lifecycle state.
func (r *PostgresSubscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE subscriptions SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}
