package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/technoshop/technoshop-backend/api/responses"
	"github.com/technoshop/technoshop-backend/api/validators"
	pkgAuth "github.com/technoshop/technoshop-backend/pkg/auth"
	"github.com/technoshop/technoshop-backend/pkg/auth/session"
	"github.com/technoshop/technoshop-backend/pkg/config"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/logger"
)

type SessionTokenRotator interface {
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// expiredOK reads the session behind the bearer token. Expiry is ignored
// since a client refreshes exactly when its access token has lapsed.
func expiredOK(r *http.Request, cfg config.JWTConfig) (*pkgAuth.AccessTokenClaims, error) {
	raw, ok := pkgAuth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token")
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "access token has no session")
	}
	return claims, nil
}

func AuthLogout(manager SessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	if manager == nil {
		return unavailable(logg, "session manager")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := expiredOK(r, cfg)
		if err == nil {
			if rerr := manager.Revoke(r.Context(), claims.ID); rerr != nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, rerr, "revoke session")
			}
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthRefresh trades a refresh token for a new pair. The old refresh token
// is spent even when it does not match.
func AuthRefresh(manager SessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	if manager == nil {
		return unavailable(logg, "session manager")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		pair, err := refresh(r, manager, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pair)
	}
}

func refresh(r *http.Request, manager SessionTokenRotator, cfg config.JWTConfig) (*refreshResponse, error) {
	var body refreshRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return nil, err
	}
	claims, err := expiredOK(r, cfg)
	if err != nil {
		return nil, err
	}

	accessID, refreshToken, err := manager.Rotate(r.Context(), claims.ID, body.RefreshToken)
	switch {
	case errors.Is(err, session.ErrInvalidRefreshToken):
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}

	access, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: claims.UserID,
		Role:   claims.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &refreshResponse{AccessToken: access, RefreshToken: refreshToken}, nil
}
