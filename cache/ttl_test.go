package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_LoadsOncePerMissingKey(t *testing.T) {
	c := NewTTLCache()
	calls := 0

	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return []string{"store-a", "store-b"}, nil
	}

	var first, second []string
	require.NoError(t, c.Get(context.Background(), "stores:dept-1", 10*time.Minute, &first, loader))
	require.NoError(t, c.Get(context.Background(), "stores:dept-1", 10*time.Minute, &second, loader))

	assert.Equal(t, 1, calls, "second Get must hit the cache, not reload")
	assert.Equal(t, []string{"store-a", "store-b"}, second)
}

func TestTTLCache_ReloadsAfterExpiry(t *testing.T) {
	c := NewTTLCache()
	calls := 0

	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	var v int
	require.NoError(t, c.Get(context.Background(), "units", time.Millisecond, &v, loader))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Get(context.Background(), "units", time.Millisecond, &v, loader))

	assert.Equal(t, 2, calls)
}

func TestTTLCache_Invalidate(t *testing.T) {
	c := NewTTLCache()
	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	var v int
	require.NoError(t, c.Get(context.Background(), "accounts", time.Minute, &v, loader))
	require.NoError(t, c.Invalidate(context.Background(), "accounts"))
	require.NoError(t, c.Get(context.Background(), "accounts", time.Minute, &v, loader))

	assert.Equal(t, 2, calls, "invalidated key must reload on next Get")
}

func TestSessionCache_NeverExpiresUntilInvalidated(t *testing.T) {
	c := NewSessionCache()
	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return map[string]bool{"123": true, "456": true}, nil
	}

	var v map[string]bool
	require.NoError(t, c.Get(context.Background(), "admin-ids", &v, loader))
	require.NoError(t, c.Get(context.Background(), "admin-ids", &v, loader))
	assert.Equal(t, 1, calls)

	require.NoError(t, c.Invalidate(context.Background(), "admin-ids"))
	require.NoError(t, c.Get(context.Background(), "admin-ids", &v, loader))
	assert.Equal(t, 2, calls)
}
