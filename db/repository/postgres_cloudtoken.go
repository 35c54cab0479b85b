package repository

import (
	"context"
	"fmt"

	"github.com/vostok-rest/backoffice/db"
)

// PostgresCloudTokenSource implements upstream/cloud.TokenSource by
// reading the most recently written row of cloud_tokens — the token
// itself is obtained and written by an external process, never by this
// service.
type PostgresCloudTokenSource struct {
	pg *db.PostgresDB
}

func NewPostgresCloudTokenSource(pg *db.PostgresDB) *PostgresCloudTokenSource {
	return &PostgresCloudTokenSource{pg: pg}
}

func (r *PostgresCloudTokenSource) LatestToken(ctx context.Context) (string, error) {
	var token string
	err := r.pg.QueryRow(ctx, `
		SELECT token FROM cloud_tokens ORDER BY written_at DESC LIMIT 1`).Scan(&token)
	if err != nil {
		return "", fmt.Errorf("failed to read latest cloud token: %w", err)
	}
	return token, nil
}
