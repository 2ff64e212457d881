// Package sqlite stores backlog records in a local SQLite file through the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Summon528/Flexget/db/sql/sqltx"

	_ "modernc.org/sqlite"
)

// Memory opens a private in-memory database, handy for tests and dry runs.
const Memory = ":memory:"

// Schema creates the backlog table. expire_at holds Unix nanoseconds so
// comparisons stay numeric.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS backlog (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		feed      TEXT NOT NULL,
		title     TEXT NOT NULL,
		expire_at INTEGER NOT NULL,
		entry     TEXT NOT NULL,
		UNIQUE (feed, title)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_backlog_feed_expire_at ON backlog (feed, expire_at)`,
}

// Open opens (creating if needed) the database at path and applies Schema.
// The pool is limited to one connection: SQLite serializes writers anyway and
// this keeps transactions from failing with SQLITE_BUSY.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ApplyMigrations(ctx, db, Schema...); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ApplyMigrations executes the provided statements in order.
func ApplyMigrations(ctx context.Context, db *sql.DB, statements ...string) error {
	for _, stmt := range statements {
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

// NewTransactor wraps db for use as a backlog.Transactor.
func NewTransactor(db *sql.DB) *sqltx.Transactor {
	return sqltx.New(db)
}
