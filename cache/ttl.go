// Package cache implements the three cache tiers spec.md §4.4 allows and no
// more: a lifetime-of-session cache (SessionCache), a per-entry-TTL cache
// (TTLCache), and the workflow-scoped cache that simply lives inside an FSM
// session's own storage and needs no type here.
//
// Both cache types are in-process maps by default. When a shared cache
// backend is configured they route the same calls through
// db/repository.CacheRepository instead, so a caller never has to know
// which backend is live — the dual-mode rule spec.md §4.4 requires for
// horizontally scaled replicas.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Backend is the narrow slice of db/repository.CacheRepository the cache
// package needs for its shared-backend mode.
type Backend interface {
	SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetCache(ctx context.Context, key string, value interface{}) error
	DeleteCache(ctx context.Context, key string) error
}

type ttlEntry struct {
	raw     []byte
	expires time.Time
}

// TTLCache is a keyed cache with a per-entry expiry, used for
// stores-by-department (10 min), write-off accounts (10 min), measure
// units (30 min), and the products list (10 min). Entries are stored as
// JSON internally so the in-process and shared-backend code paths agree on
// a single encoding.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]ttlEntry
	backend Backend // nil = in-process mode
}

// NewTTLCache builds an in-process TTL cache.
func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]ttlEntry)}
}

// NewSharedTTLCache builds a TTL cache routed through a shared backend.
func NewSharedTTLCache(backend Backend) *TTLCache {
	return &TTLCache{entries: make(map[string]ttlEntry), backend: backend}
}

// Get returns the cached value for key into dest (a pointer), calling load
// exactly once per missing or expired key — "one join-backed load per
// missing key" per spec.md §4.4.
func (c *TTLCache) Get(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func(ctx context.Context) (interface{}, error)) error {
	if c.backend != nil {
		if err := c.backend.GetCache(ctx, key, dest); err == nil {
			return nil
		}
		value, err := load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", key, err)
		}
		if err := c.backend.SetCache(ctx, key, value, ttl); err != nil {
			return fmt.Errorf("failed to populate shared cache for %s: %w", key, err)
		}
		return roundtripJSON(value, dest)
	}

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && time.Now().Before(entry.expires) {
		return json.Unmarshal(entry.raw, dest)
	}

	value, err := load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s for cache: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = ttlEntry{raw: raw, expires: time.Now().Add(ttl)}
	c.mu.Unlock()

	return json.Unmarshal(raw, dest)
}

// Invalidate removes key from the cache, in-process or shared.
func (c *TTLCache) Invalidate(ctx context.Context, key string) error {
	if c.backend != nil {
		return c.backend.DeleteCache(ctx, key)
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func roundtripJSON(value interface{}, dest interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Warm kicks off an un-awaited pre-warm of keys for userID, matching
// spec.md §4.4's "kicks off an un-awaited task" pre-warm behaviour when a
// user enters a document-authoring section. Errors are passed to onErr
// (and dropped when onErr is nil), not returned, since nothing is waiting
// on this goroutine.
func Warm(keys []string, ttl time.Duration, cache *TTLCache, load func(ctx context.Context, key string) (interface{}, error), onErr func(key string, err error)) {
	go func() {
		ctx := context.Background()
		for _, key := range keys {
			var discard interface{}
			if err := cache.Get(ctx, key, ttl, &discard, func(ctx context.Context) (interface{}, error) {
				return load(ctx, key)
			}); err != nil && onErr != nil {
				onErr(key, err)
			}
		}
	}()
}
