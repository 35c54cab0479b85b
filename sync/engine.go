// Package sync implements the mirror-sync reconciler: the generic
// fetch → map → upsert → mirror-delete → audit-log template every
// reference/balance entity kind shares, plus the bounded-concurrency
// fan-out that runs many of them together (SyncAllPos, SyncAllFinance) and
// SyncAllEntity, which runs the entity reconcilers one after another in
// one shared transaction.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/db/repository"
)

// Locker provides the non-blocking per-entity try-lock step 1 of the
// reconcile algorithm requires. Backed by db/repository's Redis
// AcquireLock/ReleaseLock when a shared cache is configured, or by
// inProcessLocker (NewInProcessLocker) otherwise — the same dual-mode rule
// as the caches.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Reconciler runs the 8-step mirror-sync algorithm for one entity kind.
type Reconciler struct {
	Name   string
	Locker Locker
	Logs   repository.SyncLogRepository
	Clock  *common.Clock

	// Fetch retrieves raw upstream records.
	Fetch func(ctx context.Context) ([]interface{}, error)
	// Map converts one raw record into a row; returning ok=false drops a
	// malformed record without failing the whole run.
	Map func(raw interface{}) (row interface{}, id string, ok bool)
	// Upsert persists the mapped rows (step 5).
	Upsert func(ctx context.Context, rows []interface{}) error
	// MirrorDelete removes rows not present in keepIDs (step 6), returning
	// how many were deleted and whether the sanity gate skipped it.
	MirrorDelete func(ctx context.Context, keepIDs []string) (deleted int, skipped bool, err error)
}

// ErrAlreadyRunning is returned when the entity's lock is already held.
var ErrAlreadyRunning = fmt.Errorf("reconcile already running for this entity")

// Run executes the algorithm once: try-lock, SyncLog running row, fetch,
// map, batch-upsert, mirror-delete, SyncLog success/error row, unlock.
func (r *Reconciler) Run(ctx context.Context) error {
	lockKey := "sync-lock:" + r.Name
	acquired, err := r.Locker.TryAcquire(ctx, lockKey, 10*time.Minute)
	if err != nil {
		return fmt.Errorf("failed to acquire sync lock for %s: %w", r.Name, err)
	}
	if !acquired {
		return ErrAlreadyRunning
	}
	defer r.Locker.Release(ctx, lockKey)

	started := r.Clock.Now()
	runID, startErr := r.Logs.StartRun(ctx, r.Name, started)
	if startErr != nil {
		common.Logger.WithFields(common.ErrorFields(startErr, r.Name)).Error("failed to record sync log start row")
	}

	rows, upserted, deleted, sanitySkipped, runErr := r.reconcile(ctx)
	_ = rows

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}

	if startErr == nil {
		finished := r.Clock.Now()
		if finishErr := r.Logs.FinishRun(ctx, runID, finished, upserted, deleted, sanitySkipped, errMsg); finishErr != nil {
			common.Logger.WithFields(common.ErrorFields(finishErr, r.Name)).Error("failed to record sync log finish row")
		}
	}

	return runErr
}

func (r *Reconciler) reconcile(ctx context.Context) (rows []interface{}, upserted, deleted int, sanitySkipped bool, err error) {
	raws, err := r.Fetch(ctx)
	if err != nil {
		return nil, 0, 0, false, fmt.Errorf("failed to fetch %s: %w", r.Name, err)
	}

	keepIDs := make([]string, 0, len(raws))
	for _, raw := range raws {
		row, id, ok := r.Map(raw)
		if !ok {
			continue
		}
		rows = append(rows, row)
		keepIDs = append(keepIDs, id)
	}

	if err := r.Upsert(ctx, rows); err != nil {
		return rows, 0, 0, false, fmt.Errorf("failed to upsert %s: %w", r.Name, err)
	}
	upserted = len(rows)

	deleted, sanitySkipped, err = r.MirrorDelete(ctx, keepIDs)
	if err != nil {
		return rows, upserted, 0, false, fmt.Errorf("failed to mirror-delete %s: %w", r.Name, err)
	}
	if sanitySkipped {
		common.Logger.WithFields(map[string]interface{}{"entity": r.Name}).Warn("mirror-delete sanity gate skipped delete")
	}

	return rows, upserted, deleted, sanitySkipped, nil
}
