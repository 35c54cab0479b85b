package sync

import (
	"context"
	"sync"
	"time"
)

// inProcessLocker is the fallback Locker used when no shared cache backend
// is configured — correct for a single replica, not for several sharing one
// database (that case must configure a Redis-backed Locker instead).
type inProcessLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewInProcessLocker builds a Locker usable when this process is the only
// replica running syncs. TTL is honored so a held lock past its expiry is
// treated as stale and reacquirable, matching the Redis-backed Locker's
// SETNX+TTL behaviour.
func NewInProcessLocker() Locker {
	return &inProcessLocker{held: make(map[string]time.Time)}
}

func (l *inProcessLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.held[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	l.held[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *inProcessLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// redisLocker adapts db/repository.CacheRepository's AcquireLock/ReleaseLock
// to the Locker interface this package expects.
type redisLocker struct {
	cache cacheRepository
}

// cacheRepository is the narrow slice of db/repository.CacheRepository the
// sync package needs; declared locally to avoid an import cycle-shaped
// dependency on the full repository interface set from this small file.
type cacheRepository interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// NewRedisLocker builds a Locker backed by a shared cache repository, usable
// correctly across multiple replicas of this service.
func NewRedisLocker(cache cacheRepository) Locker {
	return &redisLocker{cache: cache}
}

func (l *redisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.cache.AcquireLock(ctx, key, ttl)
}

func (l *redisLocker) Release(ctx context.Context, key string) error {
	return l.cache.ReleaseLock(ctx, key)
}
