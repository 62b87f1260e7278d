package redis

import (
	"context"
	"testing"
	"time"
)

func TestLockAcquireRelease(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMemoryCommands()}

	first, err := NewLock(client, client.InFlightKey("orders", "u1"), time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewLock(client, first.Key(), time.Minute)

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected first acquire, ok=%v err=%v", ok, err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail, ok=%v err=%v", ok, err)
	}

	// Releasing a lock that was never owned leaves the holder in place.
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("lock should still be held by first")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected acquire after release, ok=%v err=%v", ok, err)
	}
}

func TestLockReleaseIgnoresForeignOwner(t *testing.T) {
	ctx := context.Background()
	mock := newMemoryCommands()
	client := &Client{store: mock}

	lock, _ := NewLock(client, "ts:lock:job", time.Minute)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	// Simulate expiry and takeover by another owner.
	mock.data["ts:lock:job"] = "someone-else"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mock.data["ts:lock:job"] != "someone-else" {
		t.Fatal("foreign owner must not be released")
	}
}

func TestNewLockValidation(t *testing.T) {
	if _, err := NewLock(nil, "k", time.Second); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewLock(&Client{store: newMemoryCommands()}, "", time.Second); err == nil {
		t.Fatal("expected error for empty key")
	}
	lock, err := NewLock(&Client{store: newMemoryCommands()}, "k", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lock.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", lock.ttl)
	}
}
