package store

import (
	"fmt"

	"github.com/pocketbase/dbx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id      TEXT PRIMARY KEY NOT NULL,
		uid     TEXT NOT NULL,
		email   TEXT NOT NULL DEFAULT '',
		created TEXT NOT NULL DEFAULT '',
		updated TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_uid ON customers (uid)`,

	`CREATE TABLE IF NOT EXISTS products (
		id                  TEXT PRIMARY KEY NOT NULL,
		sku                 TEXT NOT NULL,
		name                TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		event_name          TEXT NOT NULL DEFAULT '',
		event_date          TEXT NOT NULL DEFAULT '',
		unit_amount         INTEGER NOT NULL CHECK (unit_amount >= 0),
		currency            TEXT NOT NULL DEFAULT 'eur',
		external_price_id   TEXT NOT NULL DEFAULT '',
		external_product_id TEXT NOT NULL DEFAULT '',
		active              INTEGER NOT NULL DEFAULT 1,
		created             TEXT NOT NULL DEFAULT '',
		updated             TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_sku ON products (sku)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id                TEXT PRIMARY KEY NOT NULL,
		user_id           TEXT NOT NULL,
		currency          TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'paid', 'failed', 'cancelled')),
		session_id        TEXT NOT NULL DEFAULT '',
		payment_intent_id TEXT NOT NULL DEFAULT '',
		items             TEXT NOT NULL DEFAULT '[]',
		created           TEXT NOT NULL DEFAULT '',
		paid_at           TEXT NOT NULL DEFAULT '',
		CHECK ((status = 'paid') = (paid_at != ''))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_session ON payments (session_id) WHERE session_id != ''`,
	`CREATE INDEX IF NOT EXISTS idx_payments_user ON payments (user_id)`,
	`CREATE TRIGGER IF NOT EXISTS payments_status_forward
		BEFORE UPDATE OF status ON payments
		WHEN OLD.status != NEW.status AND OLD.status != 'pending'
		BEGIN
			SELECT RAISE(ABORT, 'payment status is final');
		END`,

	`CREATE TABLE IF NOT EXISTS tickets (
		id                TEXT PRIMARY KEY NOT NULL,
		user_id           TEXT NOT NULL,
		payment_id        TEXT NOT NULL REFERENCES payments (id),
		seq               INTEGER NOT NULL,
		event_name        TEXT NOT NULL,
		ticket_type       TEXT NOT NULL,
		event_date        TEXT NOT NULL DEFAULT '',
		unit_price        INTEGER NOT NULL,
		amount_minor      INTEGER NOT NULL,
		currency          TEXT NOT NULL,
		code              TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'active', 'used', 'cancelled')),
		session_id        TEXT NOT NULL DEFAULT '',
		payment_intent_id TEXT NOT NULL DEFAULT '',
		created           TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_code ON tickets (code)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_payment_seq ON tickets (payment_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets (user_id)`,
	`CREATE TRIGGER IF NOT EXISTS tickets_status_forward
		BEFORE UPDATE OF status ON tickets
		WHEN OLD.status != NEW.status AND NOT (
			(OLD.status = 'pending' AND NEW.status IN ('active', 'cancelled')) OR
			(OLD.status = 'active' AND NEW.status IN ('used', 'cancelled'))
		)
		BEGIN
			SELECT RAISE(ABORT, 'ticket status cannot move backward');
		END`,
	`CREATE TRIGGER IF NOT EXISTS tickets_require_paid_insert
		BEFORE INSERT ON tickets
		WHEN NEW.status IN ('active', 'used')
			AND (SELECT status FROM payments WHERE id = NEW.payment_id) IS NOT 'paid'
		BEGIN
			SELECT RAISE(ABORT, 'ticket cannot be live before its payment is paid');
		END`,
}

var dropSchema = []string{
	`DROP TABLE IF EXISTS tickets`,
	`DROP TABLE IF EXISTS payments`,
	`DROP TABLE IF EXISTS products`,
	`DROP TABLE IF EXISTS customers`,
}

// CreateSchema creates the tables, indexes and triggers if missing.
func CreateSchema(db dbx.Builder) error {
	for _, stmt := range schema {
		if _, err := db.NewQuery(stmt).Execute(); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func DropSchema(db dbx.Builder) error {
	for _, stmt := range dropSchema {
		if _, err := db.NewQuery(stmt).Execute(); err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	return nil
}
