package backlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Summon528/Flexget/pipeline"
)

var (
	ErrInvalidFeed    = errors.New("backlog: feed name is required")
	ErrConflict       = errors.New("backlog: conflicting record")
	ErrInvalidPayload = errors.New("backlog: invalid entry payload")
	ErrNilStore       = errors.New("backlog: store and transactor are required")
)

// Record is a stored backlog entry.
type Record struct {
	Feed     string
	Title    string
	ExpireAt time.Time
	Payload  json.RawMessage
}

// Entry decodes the stored payload.
func (r Record) Entry() (pipeline.Entry, error) {
	return pipeline.DecodeEntry(r.Payload)
}

// Expired reports whether the record is eligible for purging at now.
func (r Record) Expired(now time.Time) bool {
	return r.ExpireAt.Before(now)
}

// Tx is the transaction handle passed to every Store call. *sql.Tx satisfies it.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactor owns transaction lifetime: fn runs inside one transaction that
// is committed when fn returns nil and rolled back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Store persists backlog records. Implementations keep no session state and
// only touch records of the feed they are given.
type Store interface {
	// Upsert inserts a record, or extends the expiry of an existing one to
	// max(existing, expireAt). The stored payload is kept on extend.
	Upsert(ctx context.Context, tx Tx, feed, title string, payload pipeline.Entry, expireAt time.Time) error
	// Purge deletes the feed's records whose expiry is before now.
	Purge(ctx context.Context, tx Tx, feed string, now time.Time) error
	// ListLive returns every stored record of the feed, in no particular order.
	ListLive(ctx context.Context, tx Tx, feed string) ([]Record, error)
}
