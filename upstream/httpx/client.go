// Package httpx provides a single retrying HTTP executor shared by the
// POS, finance, and cloud upstream clients. Each caller supplies its own
// RetryPolicy (attempt count, delay schedule, retryable predicate) so the
// three clients' different retry schedules run through one code path.
package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vostok-rest/backoffice/common"
)

// RetryPolicy describes how Execute should retry a failed request.
type RetryPolicy struct {
	// Delays holds the backoff before each retry attempt (Delays[0] is
	// the wait before the 2nd attempt, and so on). len(Delays)+1 is the
	// max attempt count.
	Delays []time.Duration
	// Retryable decides whether a given error/response is worth retrying.
	// Defaults to common.IsTransient(err) when nil.
	Retryable func(resp *http.Response, err error) bool
}

// NoRetry is a policy that makes a single attempt.
var NoRetry = RetryPolicy{}

// Request is one HTTP call plus the policy to retry it with.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Policy  RetryPolicy
}

// Response is the outcome of a (possibly retried) request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client wraps http.Client with the shared retry loop.
type Client struct {
	HTTP *http.Client
}

// New builds a Client with the given connect/read timeout budget and pool
// sizing (mirrors the POS/finance connection-pool discipline spec.md §4.1
// requires: bounded idle/total connections, explicit timeouts).
func New(timeout time.Duration, maxConns, maxIdleConns int) *Client {
	transport := &http.Transport{
		MaxConnsPerHost:     maxConns,
		MaxIdleConnsPerHost: maxIdleConns,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{HTTP: &http.Client{Transport: transport, Timeout: timeout}}
}

// Execute runs req, retrying per its Policy whatever the method; the zero
// policy (NoRetry) makes one attempt. A POST is retried only when its
// caller passes a policy explicitly, as the POS client does for document
// submission, where the client-generated document UUID is the idempotency
// key.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	maxAttempts := len(req.Policy.Delays) + 1
	retryable := req.Policy.Retryable
	if retryable == nil {
		retryable = func(resp *http.Response, err error) bool {
			if err != nil {
				return common.IsTransient(err)
			}
			return resp != nil && common.Classify(&common.HTTPStatusError{StatusCode: resp.StatusCode}) == common.ClassTransient
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.executeOnce(ctx, req)
		if err == nil && resp.IsSuccess() {
			return resp, nil
		}
		if err == nil {
			err = fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)
		}
		lastErr = err

		var httpResp *http.Response
		if resp != nil {
			httpResp = &http.Response{StatusCode: resp.StatusCode}
		}
		if !retryable(httpResp, err) {
			return resp, err
		}
		if attempt < maxAttempts-1 {
			delay := req.Policy.Delays[attempt]
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", common.MaskURL(req.URL), maxAttempts, lastErr)
}

func (c *Client) executeOnce(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", common.MaskURL(req.URL), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Headers: httpResp.Header, Body: respBody}, nil
}
