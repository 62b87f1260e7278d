package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by JSONCache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// CacheStore is the subset of Client a JSONCache needs.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(kind, id string) string
}

// JSONCache stores JSON documents of type T under a key kind with a jittered
// TTL so entries written together do not expire together.
type JSONCache[T any] struct {
	store   CacheStore
	kind    string
	baseTTL time.Duration
	jitter  time.Duration
	rand    func(int64) int64
}

// NewJSONCache builds a cache for kind.
func NewJSONCache[T any](store CacheStore, kind string, baseTTL, jitter time.Duration) *JSONCache[T] {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &JSONCache[T]{
		store:   store,
		kind:    kind,
		baseTTL: baseTTL,
		jitter:  jitter,
		rand:    rand.Int63n,
	}
}

func (c *JSONCache[T]) Get(ctx context.Context, id string) (*T, error) {
	raw, err := c.store.Get(ctx, c.store.CacheKey(c.kind, id))
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("unmarshal %s failed: %w", c.kind, err)
	}
	return &value, nil
}

func (c *JSONCache[T]) Set(ctx context.Context, id string, value *T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", c.kind, err)
	}
	if err := c.store.Set(ctx, c.store.CacheKey(c.kind, id), string(payload), c.ttl()); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *JSONCache[T]) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.store.CacheKey(c.kind, id))
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *JSONCache[T]) ttl() time.Duration {
	if c.jitter <= 0 {
		return c.baseTTL
	}
	return c.baseTTL + time.Duration(c.rand(int64(c.jitter)))
}
