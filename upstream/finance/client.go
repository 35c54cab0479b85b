// Package finance is the JSON client for the cloud finance system: 13 flat
// reference resources (categories, money-bags, partners, directions,
// goods, deals, obligations, employees, ...), no pagination — each list
// endpoint returns the full set.
package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/vostok-rest/backoffice/upstream/httpx"
)

// getRetryPolicy is the 429-aware exponential schedule: 2/4/8/16/32s, up
// to 5 retries after the first attempt.
var getRetryPolicy = httpx.RetryPolicy{
	Delays: []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second},
}

// Config configures the finance client.
type Config struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
}

// Client is the finance upstream client. inFlight bounds concurrent
// requests to 4 (upstream's 300/min limit with a 4x safety margin);
// limiter additionally smooths the per-minute rate.
type Client struct {
	cfg     Config
	hc      *httpx.Client
	inFlight chan struct{}
	limiter *rate.Limiter
}

// New builds a finance client gated to at most 4 concurrent requests and
// an average of 300 requests/minute.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:      cfg,
		hc:       httpx.New(cfg.Timeout, 20, 10),
		inFlight: make(chan struct{}, 4),
		limiter:  rate.NewLimiter(rate.Limit(300.0/60.0), 4),
	}
}

// RawRecord is one upstream row before mapping into a domain type.
type RawRecord map[string]interface{}

// FetchResource fetches the full set of one finance resource
// (GET /v1/{resource}); the finance API never paginates.
func (c *Client) FetchResource(ctx context.Context, resource string) ([]RawRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	select {
	case c.inFlight <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.inFlight }()

	req := httpx.Request{
		Method:  "GET",
		URL:     c.cfg.BaseURL + "/v1/" + resource,
		Headers: map[string]string{"Authorization": "Bearer " + c.cfg.BearerToken},
		Policy:  getRetryPolicy,
	}
	resp, err := c.hc.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch finance resource %s: %w", resource, err)
	}

	var records []RawRecord
	if err := json.Unmarshal(resp.Body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode finance resource %s: %w", resource, err)
	}
	return records, nil
}
