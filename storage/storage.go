// Package storage defines the byte cache that fronts slow catalog lookups.
// Implementations live in the memory and redis subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

// Cache stores opaque values by key with an optional time-to-live.
type Cache interface {
	// Get returns the value stored under key. It returns ErrNotFound when the
	// key is absent or has expired; any other error is a backend failure.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores data under key. A zero ttl stores the value without expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Item represents a stored piece of data with metadata.
type Item struct {
	Data      []byte     // The stored data
	CreatedAt time.Time  // When the item was created
	ExpiresAt *time.Time // When the item expires (nil = no expiration)
}

// NewItem copies data into an Item expiring ttl from now.
func NewItem(data []byte, ttl time.Duration) *Item {
	now := time.Now()
	item := &Item{Data: append([]byte(nil), data...), CreatedAt: now}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		item.ExpiresAt = &expiresAt
	}
	return item
}

// IsExpired checks if the item has expired.
func (si *Item) IsExpired() bool {
	return si.ExpiresAt != nil && time.Now().After(*si.ExpiresAt)
}

// ErrNotFound is returned by Get on a cache miss.
var ErrNotFound = errors.New("storage: not found")

// Nop is a Cache that stores nothing. Every Get misses.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error)              { return nil, ErrNotFound }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error                     { return nil }
func (Nop) Close() error                                             { return nil }

var _ Cache = Nop{}
