package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technoshop/technoshop-backend/pkg/config"
)

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemoryCounter() *memoryCounter { return &memoryCounter{counts: map[string]int64{}} }

func (m *memoryCounter) CountInWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryCounter) RateLimitKey(scope string) string { return "rl:" + scope }

func loginRequest(email, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"hunter2hunter2"}`))
	req.RemoteAddr = addr
	return req
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestRateLimitPassesBodyThrough(t *testing.T) {
	var body string
	handler := RateLimit(RateLimitPolicy{Name: "login", Window: time.Minute, PerIP: 3, PerEmail: 3}, newMemoryCounter(), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			body = string(raw)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("buyer@example.com", "10.1.1.1:4000"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `"email":"buyer@example.com"`)
}

func TestRateLimitEmailBudgetIsSharedAcrossAddresses(t *testing.T) {
	handler := RateLimit(RateLimitPolicy{Name: "login", Window: time.Minute, PerEmail: 2}, newMemoryCounter(), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var rec *httptest.ResponseRecorder
	for i, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("Same@Example.com", addr))
		if i < 2 {
			require.Equal(t, http.StatusOK, rec.Code)
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCodeOf(t, rec))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimitKeysByPolicyAndDigest(t *testing.T) {
	counter := newMemoryCounter()
	handler := RateLimit(RegisterRateLimit(config.AuthRateLimitConfig{RegisterWindow: time.Minute, RegisterIPLimit: 5, RegisterEmailLimit: 5}), counter, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := loginRequest(" New@Shop.io ", "127.0.0.1:9")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.EqualValues(t, 1, counter.counts["rl:register:ip:203.0.113.7"])
	assert.EqualValues(t, 1, counter.counts["rl:register:email:"+digest("new@shop.io")])
}

func TestRateLimitIgnoresMalformedForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	assert.Equal(t, "192.0.2.10", remoteIP(req))
}

func TestRateLimitCounterFailureIsDependencyError(t *testing.T) {
	counter := newMemoryCounter()
	counter.err = errors.New("redis down")
	handler := RateLimit(RateLimitPolicy{Name: "login", Window: time.Minute, PerIP: 1}, counter, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { t.Fatal("handler must not run") }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("a@b.co", "10.0.0.1:1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitDisabledPolicyIsPassThrough(t *testing.T) {
	called := false
	handler := RateLimit(RateLimitPolicy{Name: "login"}, newMemoryCounter(), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	handler.ServeHTTP(httptest.NewRecorder(), loginRequest("a@b.co", "10.0.0.1:1"))
	assert.True(t, called)
}
