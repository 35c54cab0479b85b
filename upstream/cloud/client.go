// Package cloud is the JSON client for the cloud point-of-sale system that
// owns the stop-list and order webhooks. Its auth token is not obtained by
// this service — an external process writes it into a dedicated table, and
// the client simply reads the most recent row.
package cloud

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vostok-rest/backoffice/upstream/httpx"
)

// TokenSource reads the most recently written cloud API token. Backed by
// db/repository in production; a stub in tests.
type TokenSource interface {
	LatestToken(ctx context.Context) (string, error)
}

// Config configures the cloud client.
type Config struct {
	BaseURL       string
	WebhookSecret string
	Timeout       time.Duration
}

// Client is the cloud upstream client.
type Client struct {
	cfg    Config
	hc     *httpx.Client
	tokens TokenSource
}

// New builds a cloud client reading tokens from tokens.
func New(cfg Config, tokens TokenSource) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, hc: httpx.New(cfg.Timeout, 10, 5), tokens: tokens}
}

// RawRecord is one upstream row (stop-list entry, order) before mapping.
type RawRecord map[string]interface{}

// FetchStopList fetches the current stop-list snapshot.
func (c *Client) FetchStopList(ctx context.Context, terminalGroupID string) ([]RawRecord, error) {
	tok, err := c.tokens.LatestToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cloud token: %w", err)
	}

	req := httpx.Request{
		Method:  "GET",
		URL:     c.cfg.BaseURL + "/api/1/stoplist?terminalGroupId=" + terminalGroupID,
		Headers: map[string]string{"Authorization": "Bearer " + tok},
	}
	resp, err := c.hc.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stop-list: %w", err)
	}

	var records []RawRecord
	if err := json.Unmarshal(resp.Body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode stop-list: %w", err)
	}
	return records, nil
}

// VerifyWebhookSignature checks the shared-secret authToken header against
// an HMAC-SHA256 of the raw request body, constant-time.
func (c *Client) VerifyWebhookSignature(body []byte, authTokenHeader string) bool {
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(authTokenHeader))
}
