package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/common"
)

type fakeRecorder struct {
	fires map[string]time.Time
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{fires: make(map[string]time.Time)}
}

func (f *fakeRecorder) LastFire(ctx context.Context, jobName string) (time.Time, bool, error) {
	t, ok := f.fires[jobName]
	return t, ok, nil
}

func (f *fakeRecorder) RecordFire(ctx context.Context, jobName string, firedAt time.Time) error {
	f.fires[jobName] = firedAt
	return nil
}

func TestScheduler_RegisterRejectsInvalidSpec(t *testing.T) {
	clock := common.NewClock("Europe/Kaliningrad")
	s := New(clock, newFakeRecorder())

	err := s.Register(Job{Name: "bad", Spec: "not a cron spec", Run: func(ctx context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestScheduler_CatchUpRunsMissedJobBeyondGraceWindow(t *testing.T) {
	clock := common.NewClock("Europe/Kaliningrad")
	recorder := newFakeRecorder()
	s := New(clock, recorder)

	ran := false
	job := Job{
		Name: "nightly-transfer",
		Spec: "0 23 * * *",
		Run: func(ctx context.Context) error {
			ran = true
			return nil
		},
	}
	require.NoError(t, s.Register(job))

	recorder.fires["nightly-transfer"] = clock.Now().Add(-48 * time.Hour)
	s.catchUp(context.Background())

	assert.True(t, ran, "a fire missed well beyond the grace window must run once on catch-up")
}

func TestScheduler_CatchUpSkipsJobNotYetDue(t *testing.T) {
	clock := common.NewClock("Europe/Kaliningrad")
	recorder := newFakeRecorder()
	s := New(clock, recorder)

	ran := false
	job := Job{
		Name: "evening-report",
		Spec: "0 22 * * *",
		Run: func(ctx context.Context) error {
			ran = true
			return nil
		},
	}
	require.NoError(t, s.Register(job))

	recorder.fires["evening-report"] = clock.Now()
	s.catchUp(context.Background())

	assert.False(t, ran, "a job whose last fire is recent must not be re-run by catch-up")
}
