package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/db/repository"
)

type fakeStoplistRepo struct {
	mu      sync.Mutex
	active  []repository.StoplistPair
	entered []repository.StoplistPair
	left    []repository.StoplistPair
}

func (f *fakeStoplistRepo) Active(ctx context.Context) ([]repository.StoplistPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.StoplistPair, len(f.active))
	copy(out, f.active)
	return out, nil
}

func (f *fakeStoplistRepo) Enter(ctx context.Context, pair repository.StoplistPair, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = append(f.active, pair)
	f.entered = append(f.entered, pair)
	return nil
}

func (f *fakeStoplistRepo) Leave(ctx context.Context, pair repository.StoplistPair, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.active {
		if p.ProductID == pair.ProductID && p.StoreID == pair.StoreID {
			f.active = append(f.active[:i], f.active[i+1:]...)
			break
		}
	}
	f.left = append(f.left, pair)
	return nil
}

type fakeSubscriber struct {
	mu     sync.Mutex
	flushes int
}

func (f *fakeSubscriber) OnStoplistFlush(ctx context.Context, entered, left []repository.StoplistPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes
}

func TestDebouncer_BurstCollapsesToOneFlush(t *testing.T) {
	repo := &fakeStoplistRepo{}
	sub := &fakeSubscriber{}
	snapshot := []repository.StoplistPair{{ProductID: "p1", StoreID: "s1"}}

	d := NewDebouncer(repo, func(ctx context.Context) ([]repository.StoplistPair, error) {
		return snapshot, nil
	}, sub)
	d.window = 30 * time.Millisecond

	for i := 0; i < 5; i++ {
		d.Trigger(context.Background())
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return sub.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, sub.count())
	assert.Equal(t, 1, len(repo.entered))
}

func TestDebouncer_IdenticalSnapshotsProduceNoFurtherFlushNotification(t *testing.T) {
	repo := &fakeStoplistRepo{active: []repository.StoplistPair{{ProductID: "p1", StoreID: "s1"}}}
	sub := &fakeSubscriber{}
	snapshot := []repository.StoplistPair{{ProductID: "p1", StoreID: "s1"}}

	d := NewDebouncer(repo, func(ctx context.Context) ([]repository.StoplistPair, error) {
		return snapshot, nil
	}, sub)
	d.window = 10 * time.Millisecond

	d.Trigger(context.Background())
	require.Eventually(t, func() bool { return !d.isPending() }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, sub.count(), "identical snapshot must not notify the subscriber")
}

func TestDiff_EnteredAndLeft(t *testing.T) {
	previous := []repository.StoplistPair{{ProductID: "p1", StoreID: "s1"}, {ProductID: "p2", StoreID: "s1"}}
	current := []repository.StoplistPair{{ProductID: "p2", StoreID: "s1"}, {ProductID: "p3", StoreID: "s1"}}

	entered, left := diff(previous, current)
	assert.Equal(t, []repository.StoplistPair{{ProductID: "p3", StoreID: "s1"}}, entered)
	assert.Equal(t, []repository.StoplistPair{{ProductID: "p1", StoreID: "s1"}}, left)
}

func TestContentHash_StableAcrossOrdering(t *testing.T) {
	a := []repository.StoplistPair{{ProductID: "p1", StoreID: "s1"}, {ProductID: "p2", StoreID: "s1"}}
	b := []repository.StoplistPair{{ProductID: "p2", StoreID: "s1"}, {ProductID: "p1", StoreID: "s1"}}
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHash_DiffersOnContentChange(t *testing.T) {
	a := []repository.StoplistPair{{ProductID: "p1", StoreID: "s1"}}
	b := []repository.StoplistPair{{ProductID: "p1", StoreID: "s1"}, {ProductID: "p2", StoreID: "s1"}}
	assert.NotEqual(t, ContentHash(a), ContentHash(b))
}
