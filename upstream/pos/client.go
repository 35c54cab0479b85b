// Package pos is the XML+JSON client for the on-prem POS/ERP system:
// reference data (suppliers, departments, stores, products, employees),
// stock balances, OLAP reports, and document submission (write-offs,
// invoices, internal transfers).
package pos

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/upstream/httpx"
)

// getRetryPolicy is the 1s/3s/7s schedule spec.md §4.1 requires for
// reference/balance GETs: up to three retries after the first attempt.
var getRetryPolicy = httpx.RetryPolicy{Delays: []time.Duration{time.Second, 3 * time.Second, 7 * time.Second}}

// tokenRefreshPolicy is the fixed-delay refresh retry: four attempts, 3s apart.
var tokenRefreshPolicy = httpx.RetryPolicy{
	Delays: []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second},
}

const tokenValidity = 15 * time.Minute
const tokenCacheFor = 10 * time.Minute

// Config configures the POS client.
type Config struct {
	BaseURL  string
	Login    string
	Password string
	Timeout  time.Duration
}

// Client is the POS upstream client. Token refresh is serialised through a
// singleflight.Group so concurrent callers observing an expired token wait
// on one in-flight refresh instead of stampeding the token endpoint.
type Client struct {
	cfg Config
	hc  *httpx.Client

	mu          sync.Mutex
	token       string
	obtainedAt  time.Time
	refreshOnce singleflight.Group
}

// New builds a POS client with a ≤20-connection, 10-keep-alive pool, a 15s
// connect timeout, and an overall per-request timeout of cfg.Timeout (60s
// when unset).
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	hc := httpx.New(cfg.Timeout, 20, 10)
	if tr, ok := hc.HTTP.Transport.(*http.Transport); ok {
		tr.DialContext = (&net.Dialer{Timeout: 15 * time.Second}).DialContext
	}
	return &Client{cfg: cfg, hc: hc}
}

// RawRecord is one upstream reference/document row before mapping into a
// domain type; entity-specific mapping lives in the sync package's map
// functions, not here.
type RawRecord map[string]interface{}

// token returns a cached session token, refreshing through the singleflight
// group if expired or if forceRefresh is set (used on a 403 response).
func (c *Client) token(ctx context.Context, forceRefresh bool) (string, error) {
	c.mu.Lock()
	valid := c.token != "" && !forceRefresh && time.Since(c.obtainedAt) < tokenCacheFor
	cached := c.token
	c.mu.Unlock()
	if valid {
		return cached, nil
	}

	result, err, _ := c.refreshOnce.Do("token", func() (interface{}, error) {
		req := httpx.Request{
			Method: "POST",
			URL:    c.cfg.BaseURL + "/resto/api/auth?login=" + url.QueryEscape(c.cfg.Login) + "&pass=" + url.QueryEscape(c.cfg.Password),
			Policy: tokenRefreshPolicy,
		}
		resp, err := c.hc.Execute(ctx, req)
		if err != nil {
			return "", fmt.Errorf("failed to obtain POS token: %w", err)
		}
		tok := strings.Trim(string(resp.Body), `"`+" \t\n\r")

		c.mu.Lock()
		c.token = tok
		c.obtainedAt = time.Now()
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// FetchReference fetches one reference resource (departments, stores,
// groups, product_groups, products, suppliers, employees, employee_roles)
// as XML, returning direct-child-enumerated raw records — same-named
// nested boolean flag tags must never be parsed by recursive xml.Unmarshal
// into a deep struct, only by walking immediate children.
func (c *Client) FetchReference(ctx context.Context, resource string) ([]RawRecord, error) {
	return c.fetchXML(ctx, "/resto/api/corporation/"+resource, "item")
}

func (c *Client) fetchXML(ctx context.Context, path, itemTag string) ([]RawRecord, error) {
	tok, err := c.token(ctx, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, path, tok)
	if err != nil {
		return nil, err
	}

	return decodeXMLItems(resp.Body, itemTag)
}

func (c *Client) get(ctx context.Context, path, token string) (*httpx.Response, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	req := httpx.Request{
		Method: "GET",
		URL:    c.cfg.BaseURL + path + sep + "key=" + url.QueryEscape(token),
		Policy: getRetryPolicy,
	}
	resp, err := c.hc.Execute(ctx, req)
	if err != nil && isForbidden(err) {
		if _, refreshErr := c.token(ctx, true); refreshErr != nil {
			return nil, fmt.Errorf("token refresh after 403 failed: %w", refreshErr)
		}
		return nil, fmt.Errorf("POS request to %s returned 403: %w", common.MaskURL(path), err)
	}
	return resp, err
}

func isForbidden(err error) bool {
	return err != nil && strings.Contains(err.Error(), "HTTP 403")
}

// decodeXMLItems walks direct children of each <item> element, treating
// repeated same-named child tags as a single boolean-true flag — never
// recursing into grandchildren, matching the POS XML convention for
// hierarchical entities. Elements nested below a direct child are ignored.
func decodeXMLItems(body []byte, itemTag string) ([]RawRecord, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var records []RawRecord
	var current RawRecord
	var inItem bool
	var depth int // element depth below the current item; 1 is a direct child
	var fieldName string

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !inItem && t.Name.Local == itemTag {
				inItem = true
				current = RawRecord{}
				depth = 0
				continue
			}
			if inItem {
				depth++
				fieldName = ""
				if depth == 1 {
					fieldName = t.Name.Local
					if _, exists := current[fieldName]; exists {
						current[fieldName] = true
					}
				}
			}
		case xml.CharData:
			if inItem && fieldName != "" {
				text := strings.TrimSpace(string(t))
				if text != "" {
					if _, exists := current[fieldName]; !exists {
						current[fieldName] = text
					}
				}
			}
		case xml.EndElement:
			if inItem && depth == 0 && t.Name.Local == itemTag {
				records = append(records, current)
				inItem = false
				fieldName = ""
			} else if inItem {
				depth--
				fieldName = ""
			}
		}
	}
	return records, nil
}
