// Package cache stores computed responses in Redis as JSON strings.
// A nil *Cache is valid and disables caching.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the expiration of cached aggregates.
const DefaultTTL = time.Hour

// Key prefixes.
const (
	keyPrefix = "ecolyon:"

	InfrastructureBreakdownKey = keyPrefix + "infrastructure:breakdown"
	StationsKey                = keyPrefix + "stations"
)

// InfrastructureTypeKey returns the key of a single category count.
func InfrastructureTypeKey(key string) string {
	return keyPrefix + "infrastructure:type:" + key
}

// Config holds configuration for the Redis connection.
type Config struct {
	Address  string
	Password string
	Database int
	TTL      time.Duration
}

// Cache is a typed JSON cache over a gocache Redis store.
type Cache struct {
	client *redis.Client
	cache  *cache.Cache[string]
	ttl    time.Duration
}

// Connect opens a Redis connection and verifies it with PING.
func Connect(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return New(client, cfg.TTL), nil
}

// New wraps an existing Redis client. A zero ttl means DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return &Cache{
		client: client,
		cache:  cache.New[string](redisStore),
		ttl:    ttl,
	}
}

// TTL returns the default expiration.
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// GetJSON decodes the value stored under key into dst. It reports false on a
// miss, on any store error and on undecodable values.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}

	raw, err := c.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return false
	}

	return json.Unmarshal([]byte(raw), dst) == nil
}

// SetJSON stores v under key. A zero ttl uses the cache default.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if ttl <= 0 {
		ttl = c.ttl
	}

	if err := c.cache.Set(ctx, key, string(data), store.WithExpiration(ttl)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	if err := c.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
