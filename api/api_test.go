package api_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Summon528/Flexget/api"
	"github.com/Summon528/Flexget/backlog"
	"github.com/Summon528/Flexget/db/sql/sqlite"
	"github.com/Summon528/Flexget/httpx"
	"github.com/Summon528/Flexget/pipeline"
	"github.com/bool64/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("connection refused") }

func newTestAPI(t *testing.T, now *time.Time, db api.Pinger) (*api.Client, *stats.TrackerMock) {
	t.Helper()

	sqlDB, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "backlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	if db == nil {
		db = sqlDB
	}

	st := &stats.TrackerMock{}
	clock := func() time.Time { return *now }
	m, err := backlog.NewManager(backlog.ManagerConfig{
		Store:      sqlite.NewBacklogStore(),
		Transactor: sqlite.NewTransactor(sqlDB),
		Stats:      st,
		Now:        clock,
	})
	require.NoError(t, err)

	server := httpx.NewServer()
	server.RegisterRoutes(api.NewHandler(m, api.Options{Stats: st, DB: db, Now: clock}).Register)

	ts := httpx.NewServerTestServer(server)
	t.Cleanup(ts.Close)

	return api.NewClient(ts.BaseURL()), st
}

func TestAPI_learnAndList(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c, _ := newTestAPI(t, &now, nil)

	e := pipeline.NewEntry("Show.S01E01", "http://example.com/1")
	e["quality"] = "720p"
	e["size"] = 42

	resp, err := c.Learn(ctx, "tv", []pipeline.Entry{e, {"url": "http://example.com/untitled"}}, "2 days")
	require.NoError(t, err)
	assert.Equal(t, "tv", resp.Feed)
	assert.Equal(t, 1, resp.Learned)

	list, err := c.List(ctx, "tv")
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)

	r := list.Records[0]
	assert.Equal(t, "Show.S01E01", r.Title)
	assert.True(t, now.Add(48*time.Hour).Equal(r.ExpireAt))
	assert.False(t, r.Expired)
	assert.JSONEq(t, `{"title":"Show.S01E01","url":"http://example.com/1","quality":"720p","size":42}`, string(r.Entry))

	other, err := c.List(ctx, "movies")
	require.NoError(t, err)
	assert.Equal(t, 0, other.Count)
}

func TestAPI_invalidTTL(t *testing.T) {
	now := time.Now()
	c, _ := newTestAPI(t, &now, nil)

	_, err := c.Learn(context.Background(), "tv", []pipeline.Entry{pipeline.NewEntry("A", "u")}, "soon")
	require.Error(t, err)

	var se *httpx.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, httpx.StatusBadRequest, se.Code)
}

func TestAPI_purgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c, st := newTestAPI(t, &now, nil)

	_, err := c.Learn(ctx, "tv", []pipeline.Entry{pipeline.NewEntry("old", "u1")}, "1 hour")
	require.NoError(t, err)
	_, err = c.Learn(ctx, "tv", []pipeline.Entry{pipeline.NewEntry("new", "u2")}, "3 hours")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)

	list, err := c.List(ctx, "tv")
	require.NoError(t, err)
	require.Equal(t, 2, list.Count)

	expired := 0
	for _, r := range list.Records {
		if r.Expired {
			expired++
			assert.Equal(t, "old", r.Title)
		}
	}
	assert.Equal(t, 1, expired)

	require.NoError(t, c.Purge(ctx, "tv"))

	list, err = c.List(ctx, "tv")
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "new", list.Records[0].Title)

	values, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(2), values[backlog.MetricLearned])
	assert.Equal(t, float64(1), values[backlog.MetricPurged])
	assert.Equal(t, st.Values(), values)
}

func TestAPI_health(t *testing.T) {
	now := time.Now()

	c, _ := newTestAPI(t, &now, nil)
	assert.NoError(t, c.Health(context.Background()))

	down, _ := newTestAPI(t, &now, downDB{})
	err := down.Health(context.Background())

	var se *httpx.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, httpx.StatusServiceUnavailable, se.Code)
}
