// Package memory provides an in-memory implementation of storage.Cache
// using github.com/hashicorp/golang-lru/v2 for bounded caching with TTL support.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ggoodman/mcp-postgres/storage"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCleanupInterval = 5 * time.Minute

// Option configures a Cache.
type Option func(*Cache)

// WithCleanupInterval sets how often expired items are swept.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// Cache implements storage.Cache in process memory. When full, the least
// recently used entry is evicted.
type Cache struct {
	cache    *lru.Cache[string, *storage.Item]
	interval time.Duration

	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a cache holding at most maxItems entries.
func New(maxItems int, opts ...Option) (*Cache, error) {
	cache, err := lru.New[string, *storage.Item](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	c := &Cache{
		cache:    cache,
		interval: defaultCleanupInterval,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.cleanupExpired()

	return c, nil
}

// Get retrieves the value stored under key.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	item, ok := c.cache.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	if item.IsExpired() {
		c.cache.Remove(key)
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), item.Data...), nil
}

// Set stores data under key.
func (c *Cache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	c.cache.Add(key, storage.NewItem(data, ttl))
	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.cache.Remove(key)
	return nil
}

// Close stops the sweeper and drops every entry.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.cache.Purge()
	})
	return nil
}

// cleanupExpired periodically removes expired items until Close.
func (c *Cache) cleanupExpired() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	for _, key := range c.cache.Keys() {
		if item, ok := c.cache.Peek(key); ok && item.IsExpired() {
			c.cache.Remove(key)
		}
	}
}

var _ storage.Cache = (*Cache)(nil)
