package repository

import (
	"context"
	"time"

	"github.com/vostok-rest/backoffice/db"
)

// PostgresSyncLogRepository implements SyncLogRepository against sync_log.
type PostgresSyncLogRepository struct {
	pg *db.PostgresDB
}

func NewPostgresSyncLogRepository(pg *db.PostgresDB) *PostgresSyncLogRepository {
	return &PostgresSyncLogRepository{pg: pg}
}

// StartRun inserts the running row for a reconcile pass and returns its id
// so a matching FinishRun can update it once the pass ends.
func (r *PostgresSyncLogRepository) StartRun(ctx context.Context, entityType string, startedAt time.Time) (int64, error) {
	var id int64
	err := r.pg.QueryRow(ctx, `
		INSERT INTO sync_log (entity_type, started_at, upserted, deleted, sanity_skipped)
		VALUES ($1, $2, 0, 0, false) RETURNING id`,
		entityType, startedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FinishRun updates the running row left by StartRun with its outcome.
func (r *PostgresSyncLogRepository) FinishRun(ctx context.Context, runID int64, finishedAt time.Time, upserted, deleted int, sanitySkipped bool, errMsg string) error {
	return r.pg.Exec(ctx, `
		UPDATE sync_log SET finished_at = $2, upserted = $3, deleted = $4, sanity_skipped = $5, error = $6
		WHERE id = $1`,
		runID, finishedAt, upserted, deleted, sanitySkipped, nullIfEmpty(errMsg))
}

func (r *PostgresSyncLogRepository) LastRun(ctx context.Context, entityType string) (*SyncRun, error) {
	var run SyncRun
	var errStr *string
	err := r.pg.QueryRow(ctx, `
		SELECT entity_type, started_at, finished_at, upserted, deleted, sanity_skipped, error
		FROM sync_log WHERE entity_type = $1 ORDER BY started_at DESC LIMIT 1`, entityType).
		Scan(&run.EntityType, &run.StartedAt, &run.FinishedAt, &run.Upserted, &run.Deleted, &run.SanitySkipped, &errStr)
	if err != nil {
		return nil, err
	}
	if errStr != nil {
		run.Error = *errStr
	}
	return &run, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
