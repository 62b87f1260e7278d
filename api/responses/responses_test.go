package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/logger"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestWriteSuccessStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]int64{"totalPrice": 2590})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"totalPrice":2590}`, string(decode(t, rec).Data))
}

func TestWriteErrorClientErrors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
		reason  any
	}{
		{
			err:     pkgerrors.New(pkgerrors.CodeValidation, "discount code must be exactly 7 letters or digits").WithDetails(map[string]any{"reason": "code_format"}),
			status:  http.StatusBadRequest,
			message: "discount code must be exactly 7 letters or digits",
			reason:  "code_format",
		},
		{
			err:     pkgerrors.New(pkgerrors.CodeStateConflict, "order total changed").WithDetails(map[string]any{"reason": "total_mismatch"}),
			status:  http.StatusUnprocessableEntity,
			message: "order total changed",
			reason:  "total_mismatch",
		},
		{
			err:     pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"reason": "hidden"}),
			status:  http.StatusNotFound,
			message: "product not found",
		},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(context.Background(), nil, rec, tc.err)
		env := decode(t, rec)
		require.NotNil(t, env.Error)
		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, tc.message, env.Error.Message)
		assert.Equal(t, tc.reason, env.Error.Details["reason"])
	}
}

func TestWriteErrorHidesServerDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, errors.New("pq: relation \"orders\" does not exist"))

	env := decode(t, rec)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.Equal(t, "internal server error", env.Error.Message)
	assert.Nil(t, env.Error.Details)

	rec = httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeDependency, "storefront returned 502"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "dependency unavailable", decode(t, rec).Error.Message)
}

func TestWriteErrorLogsByStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeValidation, "bad").WithDetails(map[string]any{"reason": "minimum_amount"}))
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"reason":"minimum_amount"`)

	buf.Reset()
	WriteError(context.Background(), logg, httptest.NewRecorder(), errors.New("boom"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"status":500`)
}
