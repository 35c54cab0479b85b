package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/db/repository"
)

type fakeSyncLogRepo struct {
	runs map[string]*repository.SyncRun
}

func (f *fakeSyncLogRepo) StartRun(ctx context.Context, entityType string, startedAt time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeSyncLogRepo) FinishRun(ctx context.Context, runID int64, finishedAt time.Time, upserted, deleted int, sanitySkipped bool, errMsg string) error {
	return nil
}

func (f *fakeSyncLogRepo) LastRun(ctx context.Context, entityType string) (*repository.SyncRun, error) {
	return f.runs[entityType], nil
}

type fakeStoplistRepo struct {
	active []repository.StoplistPair
}

func (f *fakeStoplistRepo) Active(ctx context.Context) ([]repository.StoplistPair, error) {
	return f.active, nil
}

func (f *fakeStoplistRepo) Enter(ctx context.Context, pair repository.StoplistPair, at time.Time) error {
	return nil
}

func (f *fakeStoplistRepo) Leave(ctx context.Context, pair repository.StoplistPair, at time.Time) error {
	return nil
}

func TestAppState_OmitsKindsThatHaveNeverRun(t *testing.T) {
	logs := &fakeSyncLogRepo{runs: map[string]*repository.SyncRun{"store": {EntityType: "store"}}}
	stoplist := &fakeStoplistRepo{}
	state := newAppState(logs, stoplist)

	snapshot, err := state.State(context.Background())
	require.NoError(t, err)

	runs := snapshot["sync_runs"].(map[string]interface{})
	assert.Len(t, runs, 1)
	assert.Contains(t, runs, "store")
}

func TestAppState_ReportsActiveStoplistSize(t *testing.T) {
	logs := &fakeSyncLogRepo{runs: map[string]*repository.SyncRun{}}
	stoplist := &fakeStoplistRepo{active: []repository.StoplistPair{{ProductID: "p1"}, {ProductID: "p2"}}}
	state := newAppState(logs, stoplist)

	snapshot, err := state.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot["active_stoplist_size"])
}
