package redis

import "strings"

const keyNamespace = "ts"

// Key families. Every key the backend writes lives under ts:<family>:...
const (
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familySession     = "session"
	familyInFlight    = "inflight"
	familyLock        = "lock"
	familyCache       = "cache"
)

// IdempotencyKey is where a replayable response for (scope, id) is stored.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(familyIdempotency, scope, id)
}

// RateLimitKey names a fixed-window counter.
func (c *Client) RateLimitKey(scope string) string {
	return joinKey(familyRateLimit, scope)
}

// InFlightKey guards a single pending operation per user, e.g. one order
// submission at a time.
func (c *Client) InFlightKey(scope, userID string) string {
	return joinKey(familyInFlight, scope, userID)
}

func (c *Client) LockKey(name string) string {
	return joinKey(familyLock, name)
}

// CacheKey names a read-through cache entry; an empty id addresses the kind.
func (c *Client) CacheKey(kind, id string) string {
	return joinKey(familyCache, kind, id)
}

// AccessSessionKey holds the refresh-token digest for one access token jti.
func (c *Client) AccessSessionKey(accessID string) string {
	return joinKey(familySession, "access", accessID)
}

func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
