package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type cachedProduct struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestJSONCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mock := newMemoryCommands()
	client := &Client{store: mock}
	cache := NewJSONCache[cachedProduct](client, "product", 10*time.Minute, 0)

	if _, err := cache.Get(ctx, "p1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	if err := cache.Set(ctx, "p1", &cachedProduct{ID: "p1", Title: "Laptop"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := mock.data["ts:cache:product:p1"]; !ok {
		t.Fatalf("expected namespaced key, got %v", mock.data)
	}

	got, err := cache.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Laptop" {
		t.Fatalf("unexpected cached value %+v", got)
	}

	if err := cache.Delete(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := cache.Get(ctx, "p1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestJSONCacheJitteredTTL(t *testing.T) {
	cache := NewJSONCache[cachedProduct](&Client{store: newMemoryCommands()}, "product", 15*time.Minute, 5*time.Minute)
	cache.rand = func(n int64) int64 { return n - 1 }
	if got := cache.ttl(); got <= 15*time.Minute || got >= 20*time.Minute {
		t.Fatalf("ttl %s outside jitter window", got)
	}
	cache.rand = func(int64) int64 { return 0 }
	if got := cache.ttl(); got != 15*time.Minute {
		t.Fatalf("expected base ttl, got %s", got)
	}
}

func TestJSONCacheCorruptEntry(t *testing.T) {
	mock := newMemoryCommands()
	mock.data["ts:cache:product:bad"] = "{not json"
	cache := NewJSONCache[cachedProduct](&Client{store: mock}, "product", time.Minute, 0)
	if _, err := cache.Get(context.Background(), "bad"); err == nil || errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
