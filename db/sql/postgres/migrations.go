package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// migrationLockKey serializes concurrent migrators through pg_advisory_xact_lock.
const migrationLockKey = 0x6261636b6c6f67 // "backlog"

// ApplyMigrations executes the provided SQL statements in order inside one
// transaction, holding an advisory lock so concurrent processes do not race
// on CREATE statements.
func ApplyMigrations(ctx context.Context, db *sql.DB, statements ...string) error {
	if db == nil {
		return fmt.Errorf("postgres: db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("postgres: migrate lock: %w", err)
	}
	for _, stmt := range statements {
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: migrate commit: %w", err)
	}
	return nil
}
