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

// SQLiteActivityRepository implements ActivityRepository with SQLite.
type SQLiteActivityRepository struct {
	db *sql.DB
}

// NewSQLiteActivityRepository creates a new repository.
func NewSQLiteActivityRepository(db *sql.DB) *SQLiteActivityRepository {
	return &SQLiteActivityRepository{db: db}
}

// Add inserts a ledger entry.
func (r *SQLiteActivityRepository) Add(ctx context.Context, a *domain.Activity) error {
	var subscriptionID sql.NullString
	if a.SubscriptionID != nil {
		subscriptionID = sql.NullString{String: a.SubscriptionID.String(), Valid: true}
	}
	var convertedAmount sql.NullFloat64
	if a.ConvertedAmount != nil {
		convertedAmount = sql.NullFloat64{Float64: *a.ConvertedAmount, Valid: true}
	}

	query := `
		INSERT INTO activities (
			id, type, service_key, service_name, detail, date,
			amount, currency, converted_amount, converted_currency,
			request_id, subscription_id, status, invoice
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID.String(),
		string(a.Type),
		a.ServiceKey,
		a.ServiceName,
		a.Detail,
		a.Date.UTC().Format(time.RFC3339Nano),
		a.Amount,
		a.Currency,
		convertedAmount,
		a.ConvertedCurrency,
		a.RequestID,
		subscriptionID,
		string(a.Status),
		a.Invoice,
	)
	return err
}

// FindByID loads an activity by id, returning nil when absent.
func (r *SQLiteActivityRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	row := r.db.QueryRowContext(ctx, selectActivitySQLite+` WHERE id = ?`, id.String())
	activity, err := scanSQLiteActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return activity, err
}

// FindPendingWithInvoice returns settlement candidates for the monitor.
func (r *SQLiteActivityRepository) FindPendingWithInvoice(ctx context.Context) ([]*domain.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		selectActivitySQLite+` WHERE status = ? AND invoice != '' ORDER BY date`,
		string(domain.ActivityPending),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]*domain.Activity, 0)
	for rows.Next() {
		activity, err := scanSQLiteActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

// UpdateStatus moves a pending activity to a terminal status. Terminal
// activities are never rewritten.
func (r *SQLiteActivityRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ActivityStatus, detail string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot transition activity to non-terminal status %q", status)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE activities SET status = ?, detail = ? WHERE id = ? AND status = ?`,
		string(status), detail, id.String(), string(domain.ActivityPending),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
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
func (r *SQLiteActivityRepository) HasRequestID(ctx context.Context, requestID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM activities WHERE request_id = ?`, requestID,
	).Scan(&count)
	return count > 0, err
}

const selectActivitySQLite = `
	SELECT id, type, service_key, service_name, detail, date,
		amount, currency, converted_amount, converted_currency,
		request_id, subscription_id, status, invoice
	FROM activities`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteActivity(row rowScanner) (*domain.Activity, error) {
	var (
		a               domain.Activity
		id              string
		typ             string
		date            string
		convertedAmount sql.NullFloat64
		subscriptionID  sql.NullString
		status          string
	)
	err := row.Scan(&id, &typ, &a.ServiceKey, &a.ServiceName, &a.Detail, &date,
		&a.Amount, &a.Currency, &convertedAmount, &a.ConvertedCurrency,
		&a.RequestID, &subscriptionID, &status, &a.Invoice)
	if err != nil {
		return nil, err
	}

	a.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse activity id: %w", err)
	}
	a.Type = domain.ActivityType(typ)
	a.Status = domain.ActivityStatus(status)
	a.Date, err = time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return nil, fmt.Errorf("parse activity date: %w", err)
	}
	if convertedAmount.Valid {
		a.ConvertedAmount = &convertedAmount.Float64
	}
	if subscriptionID.Valid {
		parsed, err := uuid.Parse(subscriptionID.String)
		if err != nil {
			return nil, fmt.Errorf("parse subscription id: %w", err)
		}
		a.SubscriptionID = &parsed
	}
	return &a, nil
}
