package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Summon528/Flexget/backlog"
	"github.com/Summon528/Flexget/pipeline"
)

var _ backlog.Store = (*BacklogStore)(nil)

// BacklogStore persists backlog.Record rows inside SQLite.
type BacklogStore struct{}

func NewBacklogStore() *BacklogStore {
	return &BacklogStore{}
}

func (s *BacklogStore) Upsert(ctx context.Context, tx backlog.Tx, feed, title string, payload pipeline.Entry, expireAt time.Time) error {
	data, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", backlog.ErrInvalidPayload, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backlog (feed, title, expire_at, entry)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(feed, title) DO UPDATE SET
			expire_at = MAX(backlog.expire_at, excluded.expire_at)
	`, feed, title, expireAt.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("sqlite: upserting %s/%s: %w", feed, title, err)
	}
	return nil
}

func (s *BacklogStore) Purge(ctx context.Context, tx backlog.Tx, feed string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM backlog WHERE feed = ? AND expire_at < ?`, feed, now.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite: purging %s: %w", feed, err)
	}
	return nil
}

func (s *BacklogStore) ListLive(ctx context.Context, tx backlog.Tx, feed string) ([]backlog.Record, error) {
	rows, err := tx.QueryContext(ctx, `SELECT feed, title, expire_at, entry FROM backlog WHERE feed = ?`, feed)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s: %w", feed, err)
	}
	defer rows.Close()

	var records []backlog.Record
	for rows.Next() {
		var (
			r       backlog.Record
			expire  int64
			payload string
		)
		if err := rows.Scan(&r.Feed, &r.Title, &expire, &payload); err != nil {
			return nil, fmt.Errorf("sqlite: scanning backlog: %w", err)
		}
		r.ExpireAt = time.Unix(0, expire).UTC()
		r.Payload = []byte(payload)
		records = append(records, r)
	}
	return records, rows.Err()
}
