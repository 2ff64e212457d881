// Package postgres stores backlog records in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"

	"github.com/Summon528/Flexget/db/sql/sqltx"
)

// Connect opens a PostgreSQL connection using the provided options.
func Connect(opts ...Option) (*sql.DB, error) {
	return Open(opts...)
}

// Migrate applies the backlog schema followed by any extra statements.
func Migrate(ctx context.Context, db *sql.DB, extra ...string) error {
	return ApplyMigrations(ctx, db, append(append([]string(nil), Schema...), extra...)...)
}

// NewTransactor wraps db for use as a backlog.Transactor. Upserts rely on
// ON CONFLICT, so the default READ COMMITTED level is sufficient.
func NewTransactor(db *sql.DB) *sqltx.Transactor {
	return sqltx.New(db)
}
