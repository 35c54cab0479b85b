// Package permissions resolves whether a user may invoke a given reply
// button or inline callback. Two sources can back that resolution: the
// current spreadsheet-matrix path (one row per employee, one column per
// capability token) and a legacy bot_admin/request_receiver table path.
// spec.md §9 leaves it an open question which is live in a given
// deployment, so both are implemented behind Config.UseLegacyAdminTables.
package permissions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/vostok-rest/backoffice/common"
)

// grantedMark is the cell value the spreadsheet uses to grant a capability.
const grantedMark = "✅"

// Matrix is one snapshot of the permissions spreadsheet: employee chat id
// to the set of capability tokens they hold.
type Matrix struct {
	Grants map[string]map[string]bool
}

// Has reports whether userID holds capability token.
func (m *Matrix) Has(userID, token string) bool {
	tokens, ok := m.Grants[userID]
	if !ok {
		return false
	}
	return tokens[token]
}

// Spreadsheet reads the permissions matrix from a Google Sheet, caching it
// for 5 minutes and serving the last-known-good matrix on a read failure
// (graceful degradation, per spec.md §4.6).
type Spreadsheet struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetRange    string

	mu       sync.Mutex
	cached   *Matrix
	cachedAt time.Time
	ttl      time.Duration
}

// NewSpreadsheet builds a Spreadsheet permissions source.
func NewSpreadsheet(svc *sheets.Service, spreadsheetID, sheetRange string) *Spreadsheet {
	return &Spreadsheet{svc: svc, spreadsheetID: spreadsheetID, sheetRange: sheetRange, ttl: 5 * time.Minute}
}

// Matrix returns the current permissions matrix, refreshing from the
// spreadsheet if the cached copy is older than the TTL. A refresh failure
// serves the stale cached copy instead of failing the caller, unless there
// has never been a successful read.
func (s *Spreadsheet) Matrix(ctx context.Context) (*Matrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Since(s.cachedAt) < s.ttl {
		return s.cached, nil
	}

	fresh, err := s.fetch(ctx)
	if err != nil {
		if s.cached != nil {
			common.Logger.WithFields(common.ErrorFields(err, "permissions_spreadsheet")).
				Warn("permissions spreadsheet refresh failed, serving stale matrix")
			return s.cached, nil
		}
		return nil, fmt.Errorf("failed to read permissions spreadsheet and no cached matrix exists: %w", err)
	}

	s.cached = fresh
	s.cachedAt = time.Now()
	return fresh, nil
}

func (s *Spreadsheet) fetch(ctx context.Context) (*Matrix, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions sheet: %w", err)
	}
	if len(resp.Values) == 0 {
		return &Matrix{Grants: map[string]map[string]bool{}}, nil
	}

	header := resp.Values[0]
	matrix := &Matrix{Grants: make(map[string]map[string]bool)}
	for _, row := range resp.Values[1:] {
		if len(row) == 0 {
			continue
		}
		userID := fmt.Sprintf("%v", row[0])
		grants := make(map[string]bool)
		for col := 1; col < len(header) && col < len(row); col++ {
			token, ok := header[col].(string)
			if !ok {
				continue
			}
			cell := fmt.Sprintf("%v", row[col])
			grants[token] = strings.TrimSpace(cell) == grantedMark
		}
		matrix.Grants[userID] = grants
	}
	return matrix, nil
}

// TextPermissions maps a reply-button's visible text to the capability
// token guarding it.
type TextPermissions map[string]string

// CallbackPermissions maps an inline callback-data prefix to the
// capability rule guarding it.
type CallbackPermissions map[string]CallbackRule

// CallbackRule describes how a callback prefix is authorised.
type CallbackRule struct {
	Token        string
	AdminOnly    bool
	ReceiverOnly bool // receiver OR admin
}
