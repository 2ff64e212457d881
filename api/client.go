package api

import (
	"context"
	"fmt"

	"github.com/Summon528/Flexget/httpx"
	"github.com/Summon528/Flexget/pipeline"
)

// Client talks to a running backlogd admin API.
type Client struct {
	http *httpx.Client
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, opts ...httpx.ClientOption) *Client {
	opts = append([]httpx.ClientOption{httpx.WithBaseURL(baseURL)}, opts...)
	return &Client{http: httpx.NewClient(opts...)}
}

func feedParam(feed string) httpx.RequestOption {
	return httpx.WithPathParams(map[string]string{"feed": feed})
}

// List returns every stored record of feed.
func (c *Client) List(ctx context.Context, feed string) (*ListResponse, error) {
	var out ListResponse
	if _, err := c.http.Get(ctx, clientFeed, &out, feedParam(feed)); err != nil {
		return nil, fmt.Errorf("api: list %s: %w", feed, err)
	}
	return &out, nil
}

// Learn stores entries for feed with the given ttl, e.g. "4 days".
func (c *Client) Learn(ctx context.Context, feed string, entries []pipeline.Entry, ttl string) (*LearnResponse, error) {
	var out LearnResponse
	body := LearnRequest{Entries: entries, TTL: ttl}
	if _, err := c.http.Post(ctx, clientFeed, body, &out, feedParam(feed)); err != nil {
		return nil, fmt.Errorf("api: learn %s: %w", feed, err)
	}
	return &out, nil
}

// Purge removes feed's expired records.
func (c *Client) Purge(ctx context.Context, feed string) error {
	if _, err := c.http.Delete(ctx, clientExpire, nil, feedParam(feed)); err != nil {
		return fmt.Errorf("api: purge %s: %w", feed, err)
	}
	return nil
}

// Stats returns the server's metric counters.
func (c *Client) Stats(ctx context.Context) (map[string]float64, error) {
	out := map[string]float64{}
	if _, err := c.http.Get(ctx, pathStats, &out); err != nil {
		return nil, fmt.Errorf("api: stats: %w", err)
	}
	return out, nil
}

// Health fails unless the server and its database are up.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.http.Get(ctx, pathHealth, nil); err != nil {
		return fmt.Errorf("api: health: %w", err)
	}
	return nil
}
