package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/db/repository"
)

type fakeSyncLog struct {
	runs []repository.SyncRun
}

func (f *fakeSyncLog) StartRun(ctx context.Context, entityType string, startedAt time.Time) (int64, error) {
	f.runs = append(f.runs, repository.SyncRun{EntityType: entityType, StartedAt: startedAt})
	return int64(len(f.runs) - 1), nil
}

func (f *fakeSyncLog) FinishRun(ctx context.Context, runID int64, finishedAt time.Time, upserted, deleted int, sanitySkipped bool, errMsg string) error {
	run := &f.runs[runID]
	run.FinishedAt = &finishedAt
	run.Upserted = upserted
	run.Deleted = deleted
	run.SanitySkipped = sanitySkipped
	run.Error = errMsg
	return nil
}

func (f *fakeSyncLog) LastRun(ctx context.Context, entityType string) (*repository.SyncRun, error) {
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].EntityType == entityType {
			return &f.runs[i], nil
		}
	}
	return nil, fmt.Errorf("no runs for %s", entityType)
}

func newTestReconciler(name string, logs repository.SyncLogRepository) *Reconciler {
	return &Reconciler{
		Name:   name,
		Locker: NewInProcessLocker(),
		Logs:   logs,
		Clock:  common.NewClock("Europe/Kaliningrad"),
		Fetch: func(ctx context.Context) ([]interface{}, error) {
			return []interface{}{"a", "b", "malformed"}, nil
		},
		Map: func(raw interface{}) (interface{}, string, bool) {
			s := raw.(string)
			if s == "malformed" {
				return nil, "", false
			}
			return s, s, true
		},
		Upsert: func(ctx context.Context, rows []interface{}) error { return nil },
		MirrorDelete: func(ctx context.Context, keepIDs []string) (int, bool, error) {
			return 0, false, nil
		},
	}
}

func TestReconciler_Run_RecordsTwoPhaseSyncLog(t *testing.T) {
	logs := &fakeSyncLog{}
	r := newTestReconciler("supplier", logs)

	err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, logs.runs, 1)
	run := logs.runs[0]
	assert.Equal(t, "supplier", run.EntityType)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, 2, run.Upserted, "malformed record must be dropped, not upserted")
	assert.Empty(t, run.Error)
}

func TestReconciler_Run_AlreadyRunning(t *testing.T) {
	logs := &fakeSyncLog{}
	r := newTestReconciler("department", logs)

	acquired, err := r.Locker.TryAcquire(context.Background(), "sync-lock:department", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestReconciler_Run_FetchFailureRecordsError(t *testing.T) {
	logs := &fakeSyncLog{}
	r := newTestReconciler("store", logs)
	r.Fetch = func(ctx context.Context) ([]interface{}, error) {
		return nil, fmt.Errorf("upstream unavailable")
	}

	err := r.Run(context.Background())
	assert.Error(t, err)

	require.Len(t, logs.runs, 1)
	assert.Contains(t, logs.runs[0].Error, "upstream unavailable")
}

func TestFanOut_CollectsAllErrorsWithoutAborting(t *testing.T) {
	logs := &fakeSyncLog{}
	ok1 := newTestReconciler("ok1", logs)
	failing := newTestReconciler("failing", logs)
	failing.Upsert = func(ctx context.Context, rows []interface{}) error {
		return fmt.Errorf("upsert exploded")
	}
	ok2 := newTestReconciler("ok2", logs)

	errs := FanOut(context.Background(), []*Reconciler{ok1, failing, ok2}, 2)

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "failing")
	assert.Len(t, logs.runs, 3, "every reconciler should still have recorded a sync log run")
}
