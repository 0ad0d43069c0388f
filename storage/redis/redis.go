// Package redis provides a Redis-backed implementation of storage.Cache so a
// warm cache can be shared by several server processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/mcp-postgres/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key written by the cache.
const DefaultKeyPrefix = "mcp-postgres:cache:"

// Config contains configuration options for the Redis cache
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "mcp-postgres:cache:"
	KeyPrefix string
}

// Cache implements storage.Cache using Redis. Expiry is delegated to Redis.
type Cache struct {
	client    *redis.Client
	keyPrefix string
}

// New creates a new Redis-backed cache.
func New(config Config) (*Cache, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}

	return &Cache{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

// Open parses a redis:// URL, connects and verifies the server is reachable.
func Open(ctx context.Context, url string, keyPrefix string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(Config{Client: client, KeyPrefix: keyPrefix})
}

// Get retrieves the value stored under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	redisKey := c.keyPrefix + key
	data, err := c.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", redisKey, err)
	}
	return data, nil
}

// Set stores data under key.
func (c *Cache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	redisKey := c.keyPrefix + key
	if err := c.client.Set(ctx, redisKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", redisKey, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	redisKey := c.keyPrefix + key
	if err := c.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", redisKey, err)
	}
	return nil
}

// Purge removes every key under the cache's prefix.
func (c *Cache) Purge(ctx context.Context) error {
	keys, err := c.scanKeys(ctx, c.keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// scanKeys uses Redis SCAN to find all keys matching a pattern
func (c *Cache) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

var _ storage.Cache = (*Cache)(nil)
