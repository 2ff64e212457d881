// Package sqltx runs backlog store calls inside database/sql transactions.
package sqltx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Summon528/Flexget/backlog"
)

var ErrNilDB = errors.New("sqltx: db is nil")

var _ backlog.Transactor = (*Transactor)(nil)

// Transactor implements backlog.Transactor over a *sql.DB.
type Transactor struct {
	db   *sql.DB
	opts *sql.TxOptions
}

type Option func(*Transactor)

// WithIsolation sets the isolation level of every transaction.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(t *Transactor) {
		t.opts = &sql.TxOptions{Isolation: level}
	}
}

func New(db *sql.DB, opts ...Option) *Transactor {
	t := &Transactor{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// InTx begins a transaction, runs fn and commits. Any error from fn, or a
// panic, rolls the transaction back.
func (t *Transactor) InTx(ctx context.Context, fn func(backlog.Tx) error) (err error) {
	if t == nil || t.db == nil {
		return ErrNilDB
	}

	tx, err := t.db.BeginTx(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("sqltx: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("sqltx: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqltx: commit: %w", err)
	}
	return nil
}
