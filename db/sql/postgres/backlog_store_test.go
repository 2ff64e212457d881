package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Summon528/Flexget/backlog"
	testpg "github.com/Summon528/Flexget/internal/testutil/postgrescontainer"
	"github.com/Summon528/Flexget/pipeline"
)

const testTimeout = 5 * time.Second

func TestMain(m *testing.M) {
	if err := testpg.Setup(); err != nil {
		fmt.Println("postgres backlog tests skipped:", err)
		os.Exit(0)
	}

	code := m.Run()

	if err := testpg.Teardown(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to stop postgres test container:", err)
	}

	os.Exit(code)
}

func TestBacklogStoreUpsertExtendsOnly(t *testing.T) {
	db := openTestDB(t)
	store := NewBacklogStore()
	tx := NewTransactor(db)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	feed := uniqueFeed(t)
	base := time.Now().UTC().Truncate(time.Microsecond)
	first := pipeline.Entry{"title": "A", "url": "u1", "description": "original"}

	upsert := func(e pipeline.Entry, expireAt time.Time) {
		t.Helper()
		err := tx.InTx(ctx, func(q backlog.Tx) error {
			return store.Upsert(ctx, q, feed, "A", e, expireAt)
		})
		if err != nil {
			t.Fatalf("Upsert error: %v", err)
		}
	}

	upsert(first, base.Add(2*time.Hour))
	upsert(pipeline.Entry{"title": "A", "url": "u1", "description": "changed"}, base.Add(time.Hour))

	records := listLive(t, ctx, tx, store, feed)
	if len(records) != 1 {
		t.Fatalf("expected 1 record got %d", len(records))
	}
	if !records[0].ExpireAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("expiry decreased: %v", records[0].ExpireAt)
	}

	upsert(first, base.Add(3*time.Hour))
	records = listLive(t, ctx, tx, store, feed)
	if !records[0].ExpireAt.Equal(base.Add(3 * time.Hour)) {
		t.Fatalf("expected expiry extended, got %v", records[0].ExpireAt)
	}

	entry, err := records[0].Entry()
	if err != nil {
		t.Fatalf("Entry error: %v", err)
	}
	if entry["description"] != "original" {
		t.Fatalf("expected original payload kept, got %v", entry["description"])
	}
}

func TestBacklogStorePurgeExactness(t *testing.T) {
	db := openTestDB(t)
	store := NewBacklogStore()
	tx := NewTransactor(db)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	feed, other := uniqueFeed(t), uniqueFeed(t)+"-other"
	now := time.Now().UTC().Truncate(time.Microsecond)

	err := tx.InTx(ctx, func(q backlog.Tx) error {
		for title, exp := range map[string]time.Time{
			"expired": now.Add(-time.Minute),
			"edge":    now,
			"live":    now.Add(time.Hour),
		} {
			if err := store.Upsert(ctx, q, feed, title, pipeline.NewEntry(title, "u"), exp); err != nil {
				return err
			}
		}
		return store.Upsert(ctx, q, other, "expired", pipeline.NewEntry("expired", "u"), now.Add(-time.Minute))
	})
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}

	if err := tx.InTx(ctx, func(q backlog.Tx) error { return store.Purge(ctx, q, feed, now) }); err != nil {
		t.Fatalf("Purge error: %v", err)
	}

	titles := map[string]bool{}
	for _, r := range listLive(t, ctx, tx, store, feed) {
		titles[r.Title] = true
	}
	if titles["expired"] || !titles["edge"] || !titles["live"] {
		t.Fatalf("unexpected records after purge: %v", titles)
	}
	if got := listLive(t, ctx, tx, store, other); len(got) != 1 {
		t.Fatalf("purge leaked into another feed: %d records left", len(got))
	}
}

func TestBacklogStoreConcurrentUpsertsKeepOneRecord(t *testing.T) {
	db := openTestDB(t)
	store := NewBacklogStore()
	tx := NewTransactor(db)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	feed := uniqueFeed(t)
	base := time.Now().UTC().Truncate(time.Microsecond)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- tx.InTx(ctx, func(q backlog.Tx) error {
				return store.Upsert(ctx, q, feed, "A", pipeline.NewEntry("A", "u1"), base.Add(time.Duration(i)*time.Minute))
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Upsert error: %v", err)
		}
	}

	records := listLive(t, ctx, tx, store, feed)
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record got %d", len(records))
	}
	if !records[0].ExpireAt.Equal(base.Add(7 * time.Minute)) {
		t.Fatalf("expected max expiry, got %v", records[0].ExpireAt)
	}
}

func TestBacklogStorePayloadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewBacklogStore()
	tx := NewTransactor(db)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	feed := uniqueFeed(t)
	want := pipeline.Entry{
		"title": "A",
		"url":   "http://example.com/a",
		"size":  json.Number("1234567890123"),
		"tags":  []any{"hd", "proper"},
	}
	err := tx.InTx(ctx, func(q backlog.Tx) error {
		return store.Upsert(ctx, q, feed, "A", want, time.Now().Add(time.Hour))
	})
	if err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	records := listLive(t, ctx, tx, store, feed)
	got, err := records[0].Entry()
	if err != nil {
		t.Fatalf("Entry error: %v", err)
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("payload changed: got %v want %v", got, want)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(WithDSN(testpg.DSN()))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	return db
}

func listLive(t *testing.T, ctx context.Context, tx backlog.Transactor, store *BacklogStore, feed string) []backlog.Record {
	t.Helper()
	var records []backlog.Record
	err := tx.InTx(ctx, func(q backlog.Tx) error {
		var err error
		records, err = store.ListLive(ctx, q, feed)
		return err
	})
	if err != nil {
		t.Fatalf("ListLive error: %v", err)
	}
	return records
}

func uniqueFeed(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}
