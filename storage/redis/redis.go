// Package redis provides a Redis implementation of the payrecon.Cache
// interface. The cache is best-effort by contract: every Redis failure
// is swallowed and reported as a miss, so a Redis outage degrades
// latency, never correctness.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache implements payrecon.Cache using Redis.
type Cache struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis cache configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "payrecon:").
	KeyPrefix string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{KeyPrefix: "payrecon:"}
}

// New creates a new Redis cache adapter.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "payrecon:"
	}
	return &Cache{client: client, config: config}, nil
}

// Get implements payrecon.Cache. Any Redis error counts as a miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, c.config.KeyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

// Set implements payrecon.Cache. Errors are dropped; the durable store
// remains the source of truth.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	_ = c.client.Set(ctx, c.config.KeyPrefix+key, value, ttl).Err()
}
