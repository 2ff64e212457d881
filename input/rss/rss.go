// Package rss is an input-stage plugin that reads a task's entries from an
// RSS or Atom feed.
package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Summon528/Flexget/pipeline"
	"github.com/bool64/ctxd"
	"github.com/mmcdole/gofeed"
)

// ConfigKey is the task option holding the feed URL.
const ConfigKey = "rss"

// ErrNoURL is returned when the task has no rss option.
var ErrNoURL = errors.New("rss: feed url is not configured")

var _ pipeline.InputPlugin = (*Plugin)(nil)

// Plugin fetches the feed named by the task's rss option and adds one entry
// per item.
type Plugin struct {
	parser *gofeed.Parser
	log    ctxd.Logger
}

// Option customizes a Plugin.
type Option func(*Plugin)

// WithHTTPClient replaces the client used to fetch feeds.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Plugin) {
		if c != nil {
			p.parser.Client = c
		}
	}
}

// WithUserAgent sets the User-Agent header sent with feed requests.
func WithUserAgent(ua string) Option {
	return func(p *Plugin) {
		if ua != "" {
			p.parser.UserAgent = ua
		}
	}
}

// New creates the plugin.
func New(logger ctxd.Logger, opts ...Option) *Plugin {
	if logger == nil {
		logger = ctxd.NoOpLogger{}
	}
	p := &Plugin{parser: gofeed.NewParser(), log: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Plugin) Name() string { return "rss" }

func (p *Plugin) Stage() pipeline.Stage { return pipeline.StageInput }

// OnInput fetches the feed and appends its items to the run.
func (p *Plugin) OnInput(ctx context.Context, run *pipeline.Run) error {
	url, _ := run.Config()[ConfigKey].(string)
	if url == "" {
		return ErrNoURL
	}

	feed, err := p.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return fmt.Errorf("rss: fetching %s: %w", url, err)
	}

	added := 0
	for _, item := range feed.Items {
		e, ok := entryFromItem(item)
		if !ok {
			p.log.Debug(ctx, "skipping feed item without title or link", "url", url)
			continue
		}
		run.AddEntry(e)
		added++
	}

	p.log.Info(ctx, "read feed", "url", url, "items", len(feed.Items), "entries", added)
	return nil
}

func entryFromItem(item *gofeed.Item) (pipeline.Entry, bool) {
	if item == nil {
		return nil, false
	}

	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Enclosures) > 0 {
		link = item.Enclosures[0].URL
	}
	if title == "" || link == "" {
		return nil, false
	}

	e := pipeline.NewEntry(title, link)
	if item.Description != "" {
		e["description"] = item.Description
	}
	if item.GUID != "" {
		e["guid"] = item.GUID
	}
	if pub := item.PublishedParsed; pub != nil {
		e["published"] = pub.UTC().Format(time.RFC3339)
	} else if upd := item.UpdatedParsed; upd != nil {
		e["published"] = upd.UTC().Format(time.RFC3339)
	}
	return e, true
}
