package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Summon528/Flexget/backlog"
	"github.com/Summon528/Flexget/pipeline"
	"github.com/lib/pq"
)

// Schema creates the backlog table. The unique (feed, title) constraint keeps
// at most one record per key even with concurrent writers.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS backlog (
		id        BIGSERIAL PRIMARY KEY,
		feed      TEXT NOT NULL,
		title     TEXT NOT NULL,
		expire_at TIMESTAMPTZ NOT NULL,
		entry     JSONB NOT NULL,
		CONSTRAINT backlog_feed_title_key UNIQUE (feed, title)
	)`,
	`CREATE INDEX IF NOT EXISTS backlog_feed_expire_at_idx ON backlog (feed, expire_at)`,
}

var _ backlog.Store = (*BacklogStore)(nil)

// BacklogStore persists backlog.Record rows inside PostgreSQL.
type BacklogStore struct{}

func NewBacklogStore() *BacklogStore {
	return &BacklogStore{}
}

func (s *BacklogStore) Upsert(ctx context.Context, tx backlog.Tx, feed, title string, payload pipeline.Entry, expireAt time.Time) error {
	const query = `INSERT INTO backlog (feed, title, expire_at, entry)
                   VALUES ($1, $2, $3, $4)
                   ON CONFLICT (feed, title) DO UPDATE SET expire_at = GREATEST(backlog.expire_at, EXCLUDED.expire_at)`
	data, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", backlog.ErrInvalidPayload, err)
	}
	// lib/pq sends []byte as bytea; jsonb needs the text form.
	_, err = tx.ExecContext(ctx, query, feed, title, expireAt.UTC(), string(data))
	return translateError(err)
}

func (s *BacklogStore) Purge(ctx context.Context, tx backlog.Tx, feed string, now time.Time) error {
	const query = `DELETE FROM backlog WHERE feed = $1 AND expire_at < $2`
	_, err := tx.ExecContext(ctx, query, feed, now.UTC())
	return translateError(err)
}

func (s *BacklogStore) ListLive(ctx context.Context, tx backlog.Tx, feed string) ([]backlog.Record, error) {
	const query = `SELECT feed, title, expire_at, entry FROM backlog WHERE feed = $1`
	rows, err := tx.QueryContext(ctx, query, feed)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var records []backlog.Record
	for rows.Next() {
		var (
			r    backlog.Record
			data []byte
		)
		if err := rows.Scan(&r.Feed, &r.Title, &r.ExpireAt, &data); err != nil {
			return nil, fmt.Errorf("postgres: scan backlog: %w", err)
		}
		r.ExpireAt = r.ExpireAt.UTC()
		r.Payload = append([]byte(nil), data...)
		records = append(records, r)
	}
	return records, translateError(rows.Err())
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", backlog.ErrConflict, pqErr.Message)
		case "22P02":
			return fmt.Errorf("%w: %s", backlog.ErrInvalidPayload, pqErr.Message)
		}
	}
	return err
}
