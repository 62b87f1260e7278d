package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/technoshop/technoshop-backend/api/responses"
	"github.com/technoshop/technoshop-backend/pkg/config"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/logger"
)

// credentialPeekLimit caps how much of an auth body is buffered to find the email.
const credentialPeekLimit = 16 << 10

type windowCounter interface {
	CountInWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// RateLimitPolicy is a pair of fixed-window budgets for one auth endpoint:
// attempts per client address and attempts per account email. A zero budget
// disables that dimension.
type RateLimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int64
	PerEmail int64
}

func LoginRateLimit(cfg config.AuthRateLimitConfig) RateLimitPolicy {
	return RateLimitPolicy{Name: "login", Window: cfg.LoginWindow, PerIP: int64(cfg.LoginIPLimit), PerEmail: int64(cfg.LoginEmailLimit)}
}

func RegisterRateLimit(cfg config.AuthRateLimitConfig) RateLimitPolicy {
	return RateLimitPolicy{Name: "register", Window: cfg.RegisterWindow, PerIP: int64(cfg.RegisterIPLimit), PerEmail: int64(cfg.RegisterEmailLimit)}
}

func (p RateLimitPolicy) active() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

func (p RateLimitPolicy) scope(dimension, value string) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		name = "auth"
	}
	return name + ":" + dimension + ":" + value
}

// RateLimit throttles credential endpoints. Emails are counted by digest so
// raw addresses never reach redis or the logs.
func RateLimit(policy RateLimitPolicy, counter windowCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if counter == nil || !policy.active() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.PerIP > 0 {
				if ip := remoteIP(r); ip != "" && !check(ctx, w, logg, counter, policy, "ip", ip, policy.PerIP) {
					return
				}
			}

			if policy.PerEmail > 0 {
				email, err := peekEmail(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				if email != "" && !check(ctx, w, logg, counter, policy, "email", digest(email), policy.PerEmail) {
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check counts one attempt and writes the rejection when the budget is spent.
// It reports whether the request may continue.
func check(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, counter windowCounter, policy RateLimitPolicy, dimension, value string, budget int64) bool {
	attempts, err := counter.CountInWindow(ctx, counter.RateLimitKey(policy.scope(dimension, value)), policy.Window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
		return false
	}
	if attempts <= budget {
		return true
	}
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    policy.Name,
			"dimension": dimension,
			"key":       value,
			"attempts":  attempts,
			"budget":    budget,
		}), "auth attempt throttled")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
	return false
}

// peekEmail reads the lowercased email from a JSON body and restores the body
// for the next handler.
func peekEmail(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, credentialPeekLimit+1))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
	if len(raw) > credentialPeekLimit {
		return "", nil
	}
	var creds struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &creds) != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(creds.Email)), nil
}

// remoteIP takes the left-most forwarded address, falling back to the peer.
func remoteIP(r *http.Request) string {
	for _, candidate := range []string{firstForwarded(r.Header.Get("X-Forwarded-For")), r.Header.Get("X-Real-IP")} {
		if ip := net.ParseIP(strings.TrimSpace(candidate)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func firstForwarded(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return first
}

func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
