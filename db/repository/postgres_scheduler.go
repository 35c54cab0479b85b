package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vostok-rest/backoffice/db"
)

// PostgresRunRecorder implements scheduler.RunRecorder against
// scheduler_runs, one row per job name — grounded on
// PostgresSyncLogRepository's start/finish bookkeeping, simplified to a
// single upserted "last fired at" row since the scheduler only needs the
// most recent fire time to decide whether a catch-up run is due.
type PostgresRunRecorder struct {
	pg *db.PostgresDB
}

func NewPostgresRunRecorder(pg *db.PostgresDB) *PostgresRunRecorder {
	return &PostgresRunRecorder{pg: pg}
}

func (r *PostgresRunRecorder) LastFire(ctx context.Context, jobName string) (time.Time, bool, error) {
	var firedAt time.Time
	err := r.pg.QueryRow(ctx, `SELECT fired_at FROM scheduler_runs WHERE job_name = $1`, jobName).Scan(&firedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last fire time for job %s: %w", jobName, err)
	}
	return firedAt, true, nil
}

func (r *PostgresRunRecorder) RecordFire(ctx context.Context, jobName string, firedAt time.Time) error {
	err := r.pg.Exec(ctx, `
		INSERT INTO scheduler_runs (job_name, fired_at) VALUES ($1, $2)
		ON CONFLICT (job_name) DO UPDATE SET fired_at = EXCLUDED.fired_at`, jobName, firedAt)
	if err != nil {
		return fmt.Errorf("failed to record fire time for job %s: %w", jobName, err)
	}
	return nil
}
