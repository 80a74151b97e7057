package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// SQLiteSubscriptionRepository implements SubscriptionRepository with SQLite.
type SQLiteSubscriptionRepository struct {
	db *sql.DB
}

// NewSQLiteSubscriptionRepository creates a new repository.
func NewSQLiteSubscriptionRepository(db *sql.DB) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{db: db}
}

// Add inserts a subscription.
func (r *SQLiteSubscriptionRepository) Add(ctx context.Context, s *domain.Subscription) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	createdAt := now
	if !s.CreatedAt.IsZero() {
		createdAt = s.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	query := `
		INSERT INTO subscriptions (
			id, service_key, service_name, amount, currency, recurrence,
			max_payments, until, first_payment_due, status,
			last_payment_date, next_payment_date, payment_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID.String(),
		s.ServiceKey,
		s.ServiceName,
		s.Amount,
		s.Currency,
		s.Recurrence,
		nullInt(s.MaxPayments),
		nullTime(s.Until),
		s.FirstPaymentDue.UTC().Format(time.RFC3339Nano),
		string(s.Status),
		nullTime(s.LastPaymentDate),
		nullTime(s.NextPaymentDate),
		s.PaymentCount,
		createdAt,
		now,
	)
	return err
}

// FindByID loads a subscription by id, returning nil when absent.
func (r *SQLiteSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	query := `
		SELECT id, service_key, service_name, amount, currency, recurrence,
			max_payments, until, first_payment_due, status,
			last_payment_date, next_payment_date, payment_count,
			created_at, updated_at
		FROM subscriptions WHERE id = ?
	`
	row := r.db.QueryRowContext(ctx, query, id.String())

	var (
		s               domain.Subscription
		rawID           string
		maxPayments     sql.NullInt64
		until           sql.NullString
		firstPaymentDue string
		status          string
		lastPayment     sql.NullString
		nextPayment     sql.NullString
		createdAt       string
		updatedAt       string
	)
	err := row.Scan(&rawID, &s.ServiceKey, &s.ServiceName, &s.Amount, &s.Currency,
		&s.Recurrence, &maxPayments, &until, &firstPaymentDue, &status,
		&lastPayment, &nextPayment, &s.PaymentCount, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription id: %w", err)
	}
	s.Status = domain.SubscriptionStatus(status)
	if maxPayments.Valid {
		v := int(maxPayments.Int64)
		s.MaxPayments = &v
	}
	if s.Until, err = parseNullTime(until); err != nil {
		return nil, err
	}
	if s.FirstPaymentDue, err = time.Parse(time.RFC3339Nano, firstPaymentDue); err != nil {
		return nil, fmt.Errorf("parse first payment due: %w", err)
	}
	if s.LastPaymentDate, err = parseNullTime(lastPayment); err != nil {
		return nil, err
	}
	if s.NextPaymentDate, err = parseNullTime(nextPayment); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created at: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated at: %w", err)
	}
	return &s, nil
}

// UpdateLastPayment advances the payment cursor after a confirmed charge.
func (r *SQLiteSubscriptionRepository) UpdateLastPayment(ctx context.Context, id uuid.UUID, paidAt time.Time, next *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET last_payment_date = ?, next_payment_date = ?,
			payment_count = payment_count + 1, updated_at = ?
		WHERE id = ?`,
		paidAt.UTC().Format(time.RFC3339Nano),
		nullTime(next),
		time.Now().UTC().Format(time.RFC3339Nano),
		id.String(),
	)
	return err
}

// UpdateStatus transitions the subscription lifecycle state.
func (r *SQLiteSubscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status),
		time.Now().UTC().Format(time.RFC3339Nano),
		id.String(),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}
	return &t, nil
}
