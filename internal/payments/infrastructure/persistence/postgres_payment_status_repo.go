package persistence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// PostgresPaymentStatusRepository implements the append-only settlement log
// with PostgreSQL.
type PostgresPaymentStatusRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPaymentStatusRepository creates a new repository.
func NewPostgresPaymentStatusRepository(pool *pgxpool.Pool) *PostgresPaymentStatusRepository {
	return &PostgresPaymentStatusRepository{pool: pool}
}

// Append records a settlement step. Entries are never mutated.
func (r *PostgresPaymentStatusRepository) Append(ctx context.Context, entry domain.PaymentStatusEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payment_status_entries (invoice, action_type, created_at) VALUES ($1, $2, $3)`,
		entry.Invoice, string(entry.ActionType), entry.CreatedAt.UTC(),
	)
	return err
}

// ListByInvoice returns entries for the invoice, oldest first.
func (r *PostgresPaymentStatusRepository) ListByInvoice(ctx context.Context, invoice string) ([]domain.PaymentStatusEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT invoice, action_type, created_at FROM payment_status_entries WHERE invoice = $1 ORDER BY id`,
		invoice,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.PaymentStatusEntry, 0)
	for rows.Next() {
		var (
			entry  domain.PaymentStatusEntry
			action string
		)
		if err := rows.Scan(&entry.Invoice, &action, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.ActionType = domain.PaymentActionType(action)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
