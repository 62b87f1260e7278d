// Package storefront is the shopper side of checkout: an API client and the
// per-user session that prices the cart, gates discount codes and submits
// orders.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/technoshop/technoshop-backend/pkg/checkout"
	"github.com/technoshop/technoshop-backend/pkg/config"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/logger"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxFailures = 5
	defaultOpenTimeout = 30 * time.Second
	maxResponseBytes   = 1 << 20
)

// ClientParams configures a Client. Token is the bearer access token of the
// shopper the client acts for.
type ClientParams struct {
	BaseURL     string
	Token       string
	HTTPClient  *http.Client
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
	Logger      *logger.Logger
}

// ParamsFromConfig fills the transport settings from cfg.
func ParamsFromConfig(cfg config.StorefrontConfig, token string, logg *logger.Logger) ClientParams {
	return ClientParams{
		BaseURL:     cfg.BaseURL,
		Token:       token,
		Timeout:     cfg.Timeout,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
		Logger:      logg,
	}
}

// Client calls the storefront API. Requests are never retried; once
// MaxFailures consecutive transport or server failures occur the breaker
// opens and calls fail fast with DEPENDENCY_ERROR until OpenTimeout passes.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[json.RawMessage]
	logg    *logger.Logger
}

func NewClient(params ClientParams) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(params.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("storefront base url required")
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		timeout := params.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxFailures := params.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	openTimeout := params.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}

	c := &Client{
		baseURL: baseURL,
		token:   params.Token,
		http:    httpClient,
		logg:    params.Logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:    "storefront-api",
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if c.logg == nil {
				return
			}
			ctx := c.logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			c.logg.Warn(ctx, "storefront breaker state changed")
		},
	})
	return c, nil
}

// Me loads the shopper's cart and addresses.
func (c *Client) Me(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.call(ctx, http.MethodGet, "/api/v1/me", nil, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// LookupDiscount asks the server to resolve a gated discount request.
func (c *Client) LookupDiscount(ctx context.Context, req checkout.DiscountRequest) (*checkout.AppliedDiscount, error) {
	var applied checkout.AppliedDiscount
	if err := c.call(ctx, http.MethodPost, "/api/v1/discount-codes/use", req, nil, &applied); err != nil {
		return nil, err
	}
	return &applied, nil
}

// CreateOrder submits payload under idempotencyKey so a manual resend of the
// same submission is replayed instead of duplicated.
func (c *Client) CreateOrder(ctx context.Context, payload checkout.OrderPayload, idempotencyKey string) (*OrderReceipt, error) {
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	var receipt OrderReceipt
	if err := c.call(ctx, http.MethodPost, "/api/v1/orders", payload, headers, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) EmptyCart(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/cart", nil, nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, body any, headers map[string]string, dest any) error {
	data, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.do(ctx, method, path, body, headers)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storefront api unavailable")
		}
		return err
	}
	if dest == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode response data")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storefront request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp.StatusCode, raw)
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response envelope")
	}
	return envelope.Data, nil
}

func decodeError(status int, raw []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details any    `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return pkgerrors.New(pkgerrors.CodeFromHTTPStatus(status), http.StatusText(status))
	}
	apiErr := pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message)
	if envelope.Error.Details != nil {
		apiErr = apiErr.WithDetails(envelope.Error.Details)
	}
	return apiErr
}

// countsAsSuccess keeps client-side rejections from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
		return false
	}
	return true
}
