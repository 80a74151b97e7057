package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// SQLitePaymentStatusRepository implements the append-only settlement log
// with SQLite.
type SQLitePaymentStatusRepository struct {
	db *sql.DB
}

// NewSQLitePaymentStatusRepository creates a new repository.
func NewSQLitePaymentStatusRepository(db *sql.DB) *SQLitePaymentStatusRepository {
	return &SQLitePaymentStatusRepository{db: db}
}

// Append records a settlement step. Entries are never mutated.
func (r *SQLitePaymentStatusRepository) Append(ctx context.Context, entry domain.PaymentStatusEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_status_entries (invoice, action_type, created_at) VALUES (?, ?, ?)`,
		entry.Invoice,
		string(entry.ActionType),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ListByInvoice returns entries for the invoice, oldest first.
func (r *SQLitePaymentStatusRepository) ListByInvoice(ctx context.Context, invoice string) ([]domain.PaymentStatusEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT invoice, action_type, created_at FROM payment_status_entries WHERE invoice = ? ORDER BY id`,
		invoice,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.PaymentStatusEntry, 0)
	for rows.Next() {
		var (
			entry     domain.PaymentStatusEntry
			action    string
			createdAt string
		)
		if err := rows.Scan(&entry.Invoice, &action, &createdAt); err != nil {
			return nil, err
		}
		entry.ActionType = domain.PaymentActionType(action)
		entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse entry timestamp: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
