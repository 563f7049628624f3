package store

import (
	"context"
	"strings"

	"github.com/pocketbase/dbx"
)

// Store is the SQL access layer for the catalog, payments, tickets and customers.
// A Store returned by RunInTransaction is bound to that transaction.
type Store struct {
	db   dbx.Builder
	conn *dbx.DB
}

func New(db *dbx.DB) *Store {
	return &Store{db: db, conn: db}
}

// DB exposes the underlying builder for health checks and migrations.
func (s *Store) DB() dbx.Builder {
	return s.db
}

// RunInTransaction runs fn in a single transaction. Nested calls reuse the
// outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *Store) error) error {
	if s.conn == nil {
		return fn(s)
	}
	return s.conn.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		return fn(&Store{db: tx})
	})
}

// Ping runs a trivial query against the database.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.NewQuery("SELECT 1").WithContext(ctx).Row(&one)
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

