// Package persistence provides SQLite and PostgreSQL implementations of
// the payment store interfaces.
package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id TEXT PRIMARY KEY,
	service_key TEXT NOT NULL,
	service_name TEXT NOT NULL DEFAULT '',
	amount REAL NOT NULL,
	currency TEXT NOT NULL,
	recurrence TEXT NOT NULL,
	max_payments INTEGER,
	until TEXT,
	first_payment_due TEXT NOT NULL,
	status TEXT NOT NULL,
	last_payment_date TEXT,
	next_payment_date TEXT,
	payment_count INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	service_key TEXT NOT NULL DEFAULT '',
	service_name TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL,
	amount REAL NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT '',
	converted_amount REAL,
	converted_currency TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL,
	subscription_id TEXT,
	status TEXT NOT NULL,
	invoice TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_activities_request_id ON activities(request_id);
CREATE INDEX IF NOT EXISTS idx_activities_status ON activities(status);

CREATE TABLE IF NOT EXISTS payment_status_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	invoice TEXT NOT NULL,
	action_type TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payment_status_invoice ON payment_status_entries(invoice);

CREATE TABLE IF NOT EXISTS processing_subscriptions (
	subscription_id TEXT PRIMARY KEY,
	locked_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS resolved_requests (
	request_id TEXT PRIMARY KEY,
	approved INTEGER NOT NULL,
	resolved_at TEXT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id UUID PRIMARY KEY,
	service_key TEXT NOT NULL,
	service_name TEXT NOT NULL DEFAULT '',
	amount DOUBLE PRECISION NOT NULL,
	currency TEXT NOT NULL,
	recurrence TEXT NOT NULL,
	max_payments INTEGER,
	until TIMESTAMPTZ,
	first_payment_due TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	last_payment_date TIMESTAMPTZ,
	next_payment_date TIMESTAMPTZ,
	payment_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS activities (
	id UUID PRIMARY KEY,
	type TEXT NOT NULL,
	service_key TEXT NOT NULL DEFAULT '',
	service_name TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	date TIMESTAMPTZ NOT NULL,
	amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT '',
	converted_amount DOUBLE PRECISION,
	converted_currency TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL,
	subscription_id UUID,
	status TEXT NOT NULL,
	invoice TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_activities_request_id ON activities(request_id);
CREATE INDEX IF NOT EXISTS idx_activities_status ON activities(status);

CREATE TABLE IF NOT EXISTS payment_status_entries (
	id BIGSERIAL PRIMARY KEY,
	invoice TEXT NOT NULL,
	action_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payment_status_invoice ON payment_status_entries(invoice);

CREATE TABLE IF NOT EXISTS processing_subscriptions (
	subscription_id UUID PRIMARY KEY,
	locked_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS resolved_requests (
	request_id TEXT PRIMARY KEY,
	approved BOOLEAN NOT NULL,
	resolved_at TIMESTAMPTZ NOT NULL
);
`

// MigrateSQLite applies the SQLite schema.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}

// MigratePostgres applies the PostgreSQL schema.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}
