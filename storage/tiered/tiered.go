// Package tiered provides a Hot/Cold two-level implementation of the
// payrecon.Cache interface: a fast in-process level (Hot) fronting a
// shared, slower level (Cold, typically Redis). Reads go hot-first with
// cold backfill; writes go through both levels. Like every Cache, it is
// best-effort only.
package tiered

import (
	"context"
	"errors"
	"time"

	"github.com/aulatech/payrecon/pkg/payrecon"
)

// Config configures the tiered cache.
type Config struct {
	// Hot is the L1 level, consulted first (e.g. payrecon.MemoryCache).
	Hot payrecon.Cache

	// Cold is the L2 level shared across instances (e.g. Redis).
	Cold payrecon.Cache

	// HotTTL caps how long a value written or backfilled into the hot
	// level may live there, regardless of the caller's TTL. It bounds
	// how stale one instance's local copy can get relative to the
	// shared level. Default: 30 seconds.
	HotTTL time.Duration
}

// Cache implements payrecon.Cache over a hot and a cold level.
type Cache struct {
	hot    payrecon.Cache
	cold   payrecon.Cache
	hotTTL time.Duration
}

// New creates a tiered cache adapter.
func New(config Config) (*Cache, error) {
	if config.Hot == nil || config.Cold == nil {
		return nil, errors.New("tiered cache: both hot and cold levels are required")
	}
	if config.HotTTL <= 0 {
		config.HotTTL = 30 * time.Second
	}

	return &Cache{
		hot:    config.Hot,
		cold:   config.Cold,
		hotTTL: config.HotTTL,
	}, nil
}

// Get implements payrecon.Cache with a read-through strategy: a hot hit
// answers immediately, a cold hit backfills the hot level.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if value, ok := c.hot.Get(ctx, key); ok {
		return value, true
	}

	value, ok := c.cold.Get(ctx, key)
	if ok {
		c.hot.Set(ctx, key, value, c.hotTTL)
	}
	return value, ok
}

// Set implements payrecon.Cache with a write-through strategy. The hot
// copy's TTL is capped at HotTTL; the cold level keeps the caller's TTL.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	hotTTL := ttl
	if hotTTL > c.hotTTL {
		hotTTL = c.hotTTL
	}
	c.hot.Set(ctx, key, value, hotTTL)
	c.cold.Set(ctx, key, value, ttl)
}
