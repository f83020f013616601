package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the bills, transactions and scanned_messages tables if
// needed. Keeping the migration in code lets the worker bootstrap a fresh
// database.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS bills (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	source_document_id TEXT NOT NULL,
	company TEXT,
	amount DOUBLE PRECISION,
	currency TEXT,
	due_date TEXT,
	bill_type TEXT,
	status TEXT NOT NULL,
	confidence INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, source_document_id)
);
CREATE INDEX IF NOT EXISTS idx_bills_user_status ON bills(user_id, status);
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	statement_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	date TEXT NOT NULL,
	description TEXT NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, statement_id, position)
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
CREATE TABLE IF NOT EXISTS scanned_messages (
	user_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	scanned_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, message_id)
);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
