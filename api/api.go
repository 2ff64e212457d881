// Package api exposes the backlog over HTTP for inspection and manual
// seeding, and provides a matching client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Summon528/Flexget/backlog"
	"github.com/Summon528/Flexget/duration"
	"github.com/Summon528/Flexget/httpx"
	"github.com/Summon528/Flexget/pipeline"
	"github.com/bool64/ctxd"
)

const (
	pathHealth   = "/healthz"
	pathStats    = "/stats"
	pathBacklog  = "/feeds/:feed/backlog"
	pathExpired  = "/feeds/:feed/backlog/expired"
	clientFeed   = "/feeds/{feed}/backlog"
	clientExpire = "/feeds/{feed}/backlog/expired"
)

// Record is the wire form of a backlog record.
type Record struct {
	Feed     string          `json:"feed"`
	Title    string          `json:"title"`
	ExpireAt time.Time       `json:"expire_at"`
	Expired  bool            `json:"expired"`
	Entry    json.RawMessage `json:"entry"`
}

// ListResponse is returned by GET /feeds/:feed/backlog.
type ListResponse struct {
	Feed    string   `json:"feed"`
	Count   int      `json:"count"`
	Records []Record `json:"records"`
}

// LearnRequest is the body of POST /feeds/:feed/backlog.
type LearnRequest struct {
	Entries []pipeline.Entry `json:"entries"`
	TTL     string           `json:"ttl"`
}

// LearnResponse reports how many entries were stored.
type LearnResponse struct {
	Feed    string `json:"feed"`
	Learned int    `json:"learned"`
}

// Snapshotter exposes current metric values. *stats.TrackerMock implements it.
type Snapshotter interface {
	Values() map[string]float64
}

// Pinger checks the storage backend. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures a Handler.
type Options struct {
	Logger ctxd.Logger
	Stats  Snapshotter
	DB     Pinger
	Now    func() time.Time
}

// Handler serves the admin API on top of a backlog.Manager.
type Handler struct {
	m     *backlog.Manager
	log   ctxd.Logger
	stats Snapshotter
	db    Pinger
	now   func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(m *backlog.Manager, opts Options) *Handler {
	h := &Handler{m: m, log: opts.Logger, stats: opts.Stats, db: opts.DB, now: opts.Now}
	if h.log == nil {
		h.log = ctxd.NoOpLogger{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Register mounts the routes on e. It matches httpx.RouteRegistrar.
func (h *Handler) Register(e *httpx.Echo) {
	httpx.RegisterRoutes(e,
		httpx.Route{Method: "GET", Path: pathHealth, Handler: h.health},
		httpx.Route{Method: "GET", Path: pathStats, Handler: h.metrics},
		httpx.Route{Method: "GET", Path: pathBacklog, Handler: h.list},
		httpx.Route{Method: "POST", Path: pathBacklog, Handler: h.learn},
		httpx.Route{Method: "DELETE", Path: pathExpired, Handler: h.purge},
	)
}

func (h *Handler) health(c httpx.Context) error {
	if h.db != nil {
		if err := h.db.PingContext(c.Request().Context()); err != nil {
			h.log.Error(c.Request().Context(), "database ping failed", "error", err)
			return httpx.HTTPError(httpx.StatusServiceUnavailable, "database unavailable")
		}
	}
	return c.JSON(httpx.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) metrics(c httpx.Context) error {
	values := map[string]float64{}
	if h.stats != nil {
		values = h.stats.Values()
	}
	return c.JSON(httpx.StatusOK, values)
}

func (h *Handler) list(c httpx.Context) error {
	ctx := c.Request().Context()
	feed := c.Param("feed")

	records, err := h.m.List(ctx, feed)
	if err != nil {
		return h.fail(ctx, err)
	}

	now := h.now()
	resp := ListResponse{Feed: feed, Count: len(records), Records: make([]Record, 0, len(records))}
	for _, r := range records {
		resp.Records = append(resp.Records, Record{
			Feed:     r.Feed,
			Title:    r.Title,
			ExpireAt: r.ExpireAt,
			Expired:  r.Expired(now),
			Entry:    entryJSON(r),
		})
	}
	return c.JSON(httpx.StatusOK, resp)
}

func (h *Handler) learn(c httpx.Context) error {
	ctx := c.Request().Context()
	feed := c.Param("feed")

	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	var req LearnRequest
	if err := dec.Decode(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid request body")
	}

	if err := h.m.Learn(ctx, req.Entries, feed, req.TTL); err != nil {
		return h.fail(ctx, err)
	}

	learned := 0
	for _, e := range req.Entries {
		if e.Title() != "" {
			learned++
		}
	}
	h.log.Info(ctx, "learned backlog entries over api", "feed", feed, "count", learned, "ttl", req.TTL)
	return c.JSON(httpx.StatusCreated, LearnResponse{Feed: feed, Learned: learned})
}

func (h *Handler) purge(c httpx.Context) error {
	ctx := c.Request().Context()
	if err := h.m.Purge(ctx, c.Param("feed")); err != nil {
		return h.fail(ctx, err)
	}
	return c.NoContent(httpx.StatusNoContent)
}

func (h *Handler) fail(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, duration.ErrInvalidDuration):
		return httpx.HTTPError(httpx.StatusBadRequest, err.Error())
	case errors.Is(err, backlog.ErrInvalidFeed):
		return httpx.HTTPError(httpx.StatusBadRequest, err.Error())
	case errors.Is(err, backlog.ErrConflict):
		return httpx.HTTPError(httpx.StatusConflict, err.Error())
	}
	h.log.Error(ctx, "backlog request failed", "error", err)
	return err
}

// entryJSON renders the decoded entry, falling back to the stored bytes when
// the payload does not decode.
func entryJSON(r backlog.Record) json.RawMessage {
	e, err := r.Entry()
	if err != nil {
		return r.Payload
	}
	data, err := json.Marshal(map[string]any(e))
	if err != nil {
		return r.Payload
	}
	return data
}
