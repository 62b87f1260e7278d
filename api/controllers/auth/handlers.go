package auth

import (
	"context"
	"net/http"

	"github.com/technoshop/technoshop-backend/api/responses"
	"github.com/technoshop/technoshop-backend/api/validators"
	"github.com/technoshop/technoshop-backend/internal/auth"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/logger"
)

// decodeAndCall validates the JSON body into Req, hands it to call and
// writes the result with status.
func decodeAndCall[Req, Resp any](logg *logger.Logger, status int, call func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body Req
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := call(ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, out)
	}
}

func unavailable(logg *logger.Logger, what string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, what+" unavailable"))
	}
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "auth service")
	}
	return decodeAndCall(logg, http.StatusOK, svc.Login)
}

// AuthRegister creates a customer account and signs it straight in.
func AuthRegister(svc auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "auth service")
	}
	return decodeAndCall(logg, http.StatusCreated, svc.Register)
}
