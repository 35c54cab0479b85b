package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// SessionCache is the lifetime-of-session tier: user context, the admin id
// set, the receiver id set. No TTL — entries live until explicitly
// invalidated by a mutating event (a role change, a spreadsheet reload) or
// until the process restarts, at which point the shared-backend mode (if
// configured) is what lets the values survive a restart; the in-process
// mode does not pretend otherwise.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	backend Backend
}

// NewSessionCache builds an in-process session cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{entries: make(map[string][]byte)}
}

// NewSharedSessionCache builds a session cache routed through a shared backend.
func NewSharedSessionCache(backend Backend) *SessionCache {
	return &SessionCache{entries: make(map[string][]byte), backend: backend}
}

// Get loads key into dest, calling load exactly once if the key is absent.
// A session cache entry never expires on its own, so unlike TTLCache this
// never re-runs load for a key that's already present.
func (c *SessionCache) Get(ctx context.Context, key string, dest interface{}, load func(ctx context.Context) (interface{}, error)) error {
	if c.backend != nil {
		if err := c.backend.GetCache(ctx, key, dest); err == nil {
			return nil
		}
		value, err := load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", key, err)
		}
		if err := c.backend.SetCache(ctx, key, value, 0); err != nil {
			return fmt.Errorf("failed to populate shared session cache for %s: %w", key, err)
		}
		return roundtripJSON(value, dest)
	}

	c.mu.RLock()
	raw, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return json.Unmarshal(raw, dest)
	}

	value, err := load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	raw, err = json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s for session cache: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = raw
	c.mu.Unlock()

	return json.Unmarshal(raw, dest)
}

// Invalidate drops key, forcing the next Get to reload it — used after a
// mutating event like a role change or a stores/accounts edit.
func (c *SessionCache) Invalidate(ctx context.Context, key string) error {
	if c.backend != nil {
		return c.backend.DeleteCache(ctx, key)
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}
