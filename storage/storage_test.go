package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestItemExpiry(t *testing.T) {
	forever := NewItem([]byte("x"), 0)
	if forever.ExpiresAt != nil || forever.IsExpired() {
		t.Fatal("zero ttl should never expire")
	}

	past := NewItem([]byte("x"), time.Nanosecond)
	time.Sleep(time.Millisecond)
	if !past.IsExpired() {
		t.Fatal("expected item to be expired")
	}
}

func TestNewItemCopiesData(t *testing.T) {
	data := []byte("abc")
	item := NewItem(data, 0)
	data[0] = 'z'
	if string(item.Data) != "abc" {
		t.Fatalf("item aliased caller buffer: %q", item.Data)
	}
}

func TestNopAlwaysMisses(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
