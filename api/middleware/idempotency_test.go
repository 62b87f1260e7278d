package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryIdempotency struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], m.ttl[key] = fmt.Sprint(value), ttl
	return true, nil
}

func (m *memoryIdempotency) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key], m.ttl[key] = fmt.Sprint(value), ttl
	return nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string { return scope + "#" + id }

func orderPost(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestIdempotencyRequiresKey(t *testing.T) {
	handler := Idempotency(newMemoryIdempotency(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a key")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, orderPost("", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	store := newMemoryIdempotency()
	calls := 0
	handler := Idempotency(store, 48*time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"o1"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, orderPost("k-1", `{"items":[]}`))
	require.Equal(t, http.StatusCreated, first.Code)

	again := httptest.NewRecorder()
	handler.ServeHTTP(again, orderPost("k-1", `{"items":[]}`+"\n"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get(replayedHeader))
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"o1"}}`, again.Body.String())
	assert.Equal(t, 48*time.Hour, store.ttl["|POST /api/v1/orders#k-1"])
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	handler := Idempotency(newMemoryIdempotency(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), orderPost("k-2", `{"a":1}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, orderPost("k-2", `{"a":2}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", errorCodeOf(t, rec))
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newMemoryIdempotency()
	release := make(chan struct{})
	started := make(chan struct{})
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(httptest.NewRecorder(), orderPost("k-3", `{}`))
		close(done)
	}()
	<-started

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, orderPost("k-3", `{}`))
	close(release)
	<-done

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "REQUEST_IN_FLIGHT", errorCodeOf(t, rec))
}

func TestIdempotencyForgetsServerErrors(t *testing.T) {
	store := newMemoryIdempotency()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), orderPost("k-4", `{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, orderPost("k-4", `{}`))

	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestIdempotencyScopesKeysPerUser(t *testing.T) {
	store := newMemoryIdempotency()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	for _, user := range []string{"u1", "u2"} {
		req := orderPost("shared", `{}`)
		req = req.WithContext(context.WithValue(req.Context(), ctxUserID, user))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyDoesNotKeepInFlightRejection(t *testing.T) {
	keys := newMemoryIdempotency()
	locks := newFakeInFlightStore()
	calls := 0
	handler := Idempotency(keys, time.Hour, nil)(InFlight("order", locks, time.Second, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"o1"}}`))
	})))
	post := func() *httptest.ResponseRecorder {
		req := orderPost("K1", `{"items":[]}`)
		req = req.WithContext(WithUserID(req.Context(), "u1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	locks.hold("order:u1", "earlier-request")
	rejected := post()
	require.Equal(t, http.StatusConflict, rejected.Code)
	assert.Equal(t, "REQUEST_IN_FLIGHT", errorCodeOf(t, rejected))
	assert.Zero(t, calls)
	assert.Empty(t, keys.data)

	locks.release("order:u1")
	retried := post()
	assert.Equal(t, http.StatusCreated, retried.Code)
	assert.Empty(t, retried.Header().Get(replayedHeader))
	assert.Equal(t, 1, calls)

	replayed := post()
	assert.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, "true", replayed.Header().Get(replayedHeader))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyKeepsFinalRejections(t *testing.T) {
	store := newMemoryIdempotency()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"STATE_CONFLICT","message":"state transition disallowed"}}`))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), orderPost("k-5", `{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, orderPost("k-5", `{}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(replayedHeader))
}

func TestRetryableRejection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{name: "in flight", status: http.StatusConflict, body: `{"error":{"code":"REQUEST_IN_FLIGHT"}}`, want: true},
		{name: "conflict", status: http.StatusConflict, body: `{"error":{"code":"CONFLICT"}}`},
		{name: "unknown code", status: http.StatusConflict, body: `{"error":{"code":"SOMETHING_NEW"}}`},
		{name: "success", status: http.StatusCreated, body: `{"data":{}}`},
		{name: "not json", status: http.StatusBadRequest, body: `oops`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retryableRejection(tc.status, []byte(tc.body)))
		})
	}
}
