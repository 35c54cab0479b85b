package fsm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_StartGetClear(t *testing.T) {
	m := NewManager()

	s := m.Start("user-1", "writeoff", WriteoffStore)
	assert.Equal(t, WriteoffStore, s.Phase)

	got, ok := m.Get("user-1")
	require.True(t, ok)
	assert.Same(t, s, got)

	m.Clear("user-1")
	_, ok = m.Get("user-1")
	assert.False(t, ok)
}

func TestManager_LockIsPerUser(t *testing.T) {
	m := NewManager()
	l1 := m.Lock("user-1")
	l2 := m.Lock("user-2")
	l1Again := m.Lock("user-1")

	assert.Same(t, l1, l1Again)
	assert.NotSame(t, l1, l2)
}

func TestPhaseGuard_WriteoffTransitions(t *testing.T) {
	guard := NewPhaseGuard(WriteoffTransitions)

	assert.NoError(t, guard.Validate(WriteoffStore, WriteoffAccount))
	assert.NoError(t, guard.Validate(WriteoffPending, WriteoffApproved))
	assert.Error(t, guard.Validate(WriteoffRejected, WriteoffApproved), "rejected is terminal, approving from it must be rejected")
	assert.True(t, guard.IsTerminal(WriteoffApproved))
	assert.False(t, guard.IsTerminal(WriteoffStore))
}

type fakeStore struct {
	data map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{data: make(map[string][]byte)} }

func (f *fakeStore) SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.data[key] = []byte("session")
	return nil
}

func (f *fakeStore) GetCache(ctx context.Context, key string, value interface{}) error {
	if _, ok := f.data[key]; !ok {
		return assert.AnError
	}
	return nil
}

func (f *fakeStore) DeleteCache(ctx context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func TestDurableManager_PersistsThroughStore(t *testing.T) {
	store := newFakeStore()
	dm := NewDurableManager(store, 24*time.Hour)

	dm.Start("user-1", "writeoff", WriteoffStore)
	assert.Contains(t, store.data, sessionKey("user-1"))

	dm.Clear("user-1")
	assert.NotContains(t, store.data, sessionKey("user-1"))
}
