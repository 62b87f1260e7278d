package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/technoshop/technoshop-backend/api/responses"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/logger"
)

const defaultInFlightTTL = 30 * time.Second

type inFlightStore interface {
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	InFlightKey(scope, userID string) string
}

// InFlight allows one pending request per user for the named operation. A
// concurrent second request is rejected with REQUEST_IN_FLIGHT instead of
// queueing. The marker expires after ttl if the holder never releases it, and
// a holder only ever releases its own marker.
func InFlight(scope string, store inFlightStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultInFlightTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := UserIDFromContext(ctx)
			if userID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
				return
			}

			key := store.InFlightKey(scope, userID)
			owner := uuid.NewString()
			acquired, err := store.SetNX(ctx, key, owner, ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire in-flight marker"))
				return
			}
			if !acquired {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInFlight, "a "+scope+" request is already pending").
					WithDetails(map[string]any{"operation": scope}))
				return
			}
			defer func() {
				// the request context may already be canceled here; after a ttl
				// expiry the key may belong to a newer request
				if _, delErr := store.CompareAndDelete(context.WithoutCancel(ctx), key, owner); delErr != nil {
					logError(ctx, logg, "release in-flight marker", delErr)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
