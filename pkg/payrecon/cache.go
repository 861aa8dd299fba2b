package payrecon

import (
	"context"
	"sync"
	"time"
)

// Cache is the best-effort key/value cache used by the idempotency guard
// and the amount validator. It is purely a latency optimization: every
// correctness guarantee must hold with the cache entirely disabled, and
// callers treat any cache failure as a miss.
type Cache interface {
	// Get retrieves a cached value. Returns the value and true if found,
	// "" and false on a miss or on any cache failure.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores a value with a TTL. Failures are swallowed by
	// implementations; they must never propagate.
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// NoopCache is a cache implementation that does nothing.
// Used when caching is disabled.
type NoopCache struct{}

// NewNoopCache creates a new no-op cache.
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) Get(_ context.Context, _ string) (string, bool) {
	return "", false
}

func (c *NoopCache) Set(_ context.Context, _, _ string, _ time.Duration) {}

// cacheEntry wraps a cached value with its expiration time.
type cacheEntry struct {
	value      string
	expiration time.Time
}

func (e cacheEntry) isExpired() bool {
	return time.Now().After(e.expiration)
}

// MemoryCache implements Cache using an in-process map with TTL support.
// Suitable for single-instance deployments and tests; multi-instance
// deployments should use the Redis implementation so duplicate
// deliveries landing on different instances share the fast path.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewMemoryCache creates a new in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if entry.isExpired() {
		delete(c.entries, key)
		return "", false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistic sweep so the map does not grow unbounded under
	// a churning key space.
	if len(c.entries) > 0 && len(c.entries)%1024 == 0 {
		for k, e := range c.entries {
			if e.isExpired() {
				delete(c.entries, k)
			}
		}
	}

	c.entries[key] = cacheEntry{value: value, expiration: time.Now().Add(ttl)}
}
