package backlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Summon528/Flexget/duration"
	"github.com/Summon528/Flexget/pipeline"
	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"tailscale.com/util/singleflight"
)

const (
	MetricLearned       = "backlog_learned"
	MetricInjected      = "backlog_injected"
	MetricPurged        = "backlog_purged_runs"
	MetricDecodeFailed  = "backlog_decode_failed"
	MetricEncodeFailed  = "backlog_encode_failed"
	progressInjectedFmt = "Added %d entries from backlog"
)

// Feed is the view of a task run the manager needs. *pipeline.Run implements it.
type Feed interface {
	Name() string
	Config() map[string]any
	Entries() []pipeline.Entry
	AddEntry(e pipeline.Entry)
	FindEntry(title, url string) bool
	ReportProgress(msg string)
}

// ManagerConfig wires the dependencies required for Manager.
type ManagerConfig struct {
	Store      Store
	Transactor Transactor
	Logger     ctxd.Logger
	Stats      stats.Tracker
	Now        func() time.Time
}

// Manager learns entries into the backlog and reinjects missing ones.
type Manager struct {
	store  Store
	tx     Transactor
	log    ctxd.Logger
	stat   stats.Tracker
	now    func() time.Time
	purges singleflight.Group[string, struct{}]
}

// NewManager builds a Manager. Store and Transactor are required.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil || cfg.Transactor == nil {
		return nil, ErrNilStore
	}

	m := &Manager{
		store: cfg.Store,
		tx:    cfg.Transactor,
		log:   cfg.Logger,
		stat:  cfg.Stats,
		now:   cfg.Now,
	}
	if m.log == nil {
		m.log = ctxd.NoOpLogger{}
	}
	if m.stat == nil {
		m.stat = stats.NoOp{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Learn stores every entry for feed with an expiry of now+ttl. Each entry is
// written in its own transaction; the first storage failure stops the loop.
// Entries that cannot be encoded are skipped. A malformed ttl fails with
// duration.ErrInvalidDuration before anything is written.
func (m *Manager) Learn(ctx context.Context, entries []pipeline.Entry, feed, ttl string) error {
	if feed == "" {
		return ErrInvalidFeed
	}

	amount, err := duration.Parse(ttl)
	if err != nil {
		return err
	}
	expireAt := m.now().Add(amount).UTC()

	for _, e := range entries {
		title := e.Title()
		if title == "" {
			m.log.Warn(ctx, "skipping entry without title", "feed", feed, "url", e.URL())
			continue
		}

		err := m.tx.InTx(ctx, func(tx Tx) error {
			return m.store.Upsert(ctx, tx, feed, title, e, expireAt)
		})
		if errors.Is(err, ErrInvalidPayload) {
			m.log.Warn(ctx, "skipping unencodable entry", "feed", feed, "title", title, "error", err)
			m.stat.Add(ctx, MetricEncodeFailed, 1, "feed", feed)
			continue
		}
		if err != nil {
			return ctxd.WrapError(ctx, err, "learning backlog entry", "feed", feed, "title", title)
		}

		m.log.Debug(ctx, "saved backlog entry", "feed", feed, "title", title, "expire_at", expireAt)
		m.stat.Add(ctx, MetricLearned, 1, "feed", feed)
	}

	return nil
}

// Inject purges the feed's expired records and appends every remaining one
// the run does not already hold, matched by title and url. Records whose
// payload cannot be decoded are skipped. It returns the number of appended
// entries.
func (m *Manager) Inject(ctx context.Context, feed Feed) (int, error) {
	name := feed.Name()

	if err := m.Purge(ctx, name); err != nil {
		return 0, err
	}

	records, err := m.List(ctx, name)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range records {
		e, err := r.Entry()
		if err != nil {
			m.log.Warn(ctx, "skipping undecodable backlog record", "feed", name, "title", r.Title, "error", err)
			m.stat.Add(ctx, MetricDecodeFailed, 1, "feed", name)
			continue
		}

		if feed.FindEntry(e.Title(), e.URL()) {
			continue
		}

		m.log.Debug(ctx, "restoring backlog entry", "feed", name, "title", e.Title())
		feed.AddEntry(e)
		count++
	}

	if count > 0 {
		feed.ReportProgress(fmt.Sprintf(progressInjectedFmt, count))
		m.stat.Add(ctx, MetricInjected, float64(count), "feed", name)
	}

	return count, nil
}

// Purge deletes the feed's records that expired before now. Concurrent calls
// for the same feed share one database round trip and its result.
func (m *Manager) Purge(ctx context.Context, feed string) error {
	if feed == "" {
		return ErrInvalidFeed
	}

	_, err, _ := m.purges.Do(feed, func() (struct{}, error) {
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		ctx := context.WithoutCancel(ctx)
		now := m.now().UTC()
		err := m.tx.InTx(ctx, func(tx Tx) error {
			return m.store.Purge(ctx, tx, feed, now)
		})
		if err != nil {
			return struct{}{}, ctxd.WrapError(ctx, err, "purging backlog", "feed", feed)
		}
		m.log.Debug(ctx, "purged expired backlog", "feed", feed, "before", now)
		m.stat.Add(ctx, MetricPurged, 1, "feed", feed)
		return struct{}{}, nil
	})

	return err
}

// List returns every stored record of the feed, including expired records
// not yet purged.
func (m *Manager) List(ctx context.Context, feed string) ([]Record, error) {
	if feed == "" {
		return nil, ErrInvalidFeed
	}

	var records []Record
	err := m.tx.InTx(ctx, func(tx Tx) error {
		var err error
		records, err = m.store.ListLive(ctx, tx, feed)
		return err
	})
	if err != nil {
		return nil, ctxd.WrapError(ctx, err, "listing backlog", "feed", feed)
	}

	return records, nil
}
