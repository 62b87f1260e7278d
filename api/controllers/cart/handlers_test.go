package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/technoshop/technoshop-backend/api/middleware"
	"github.com/technoshop/technoshop-backend/internal/address"
	cartsvc "github.com/technoshop/technoshop-backend/internal/cart"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

type stubCartService struct {
	cart       *cartsvc.CartDTO
	err        error
	quotedCode string
	added      cartsvc.AddItemInput
	quantity   int
	emptied    bool
}

func (s *stubCartService) Get(ctx context.Context, userID types.ObjectID) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) Quote(ctx context.Context, userID types.ObjectID, code string) (*cartsvc.CartDTO, error) {
	s.quotedCode = code
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID types.ObjectID, input cartsvc.AddItemInput) (*cartsvc.CartDTO, error) {
	s.added = input
	return s.cart, s.err
}

func (s *stubCartService) SetQuantity(ctx context.Context, userID, itemID types.ObjectID, quantity int) (*cartsvc.CartDTO, error) {
	s.quantity = quantity
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, itemID types.ObjectID) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) Empty(ctx context.Context, userID types.ObjectID) error {
	s.emptied = true
	return s.err
}

type stubAddresses struct {
	list []address.Address
}

func (s stubAddresses) Create(ctx context.Context, userID types.ObjectID, input address.CreateInput) (*address.Address, error) {
	return nil, nil
}

func (s stubAddresses) List(ctx context.Context, userID types.ObjectID) ([]address.Address, error) {
	return s.list, nil
}

func (s stubAddresses) Delete(ctx context.Context, userID, id types.ObjectID) error { return nil }

func (s stubAddresses) Owns(ctx context.Context, userID, id types.ObjectID) (bool, error) {
	return true, nil
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), types.NewObjectID().String()))
}

func withParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func sampleCart() *cartsvc.CartDTO {
	return &cartsvc.CartDTO{
		Items:   []cartsvc.ItemDTO{{ID: types.NewObjectID(), Quantity: 2, Eligible: true}},
		Summary: pricing.Summary{ProductsQuantity: 2, ProductsPrice: 20000, TotalPrice: 20000},
	}
}

func TestMeReturnsCartAndAddresses(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	addresses := stubAddresses{list: []address.Address{{ID: types.NewObjectID(), PostalCode: "1234567890"}}}
	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	resp := httptest.NewRecorder()
	Me(svc, addresses, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data accountSnapshot `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Cart == nil || envelope.Data.Cart.Summary.TotalPrice != 20000 {
		t.Fatalf("unexpected cart %+v", envelope.Data.Cart)
	}
	if len(envelope.Data.Addresses) != 1 {
		t.Fatalf("expected one address got %d", len(envelope.Data.Addresses))
	}
}

func TestMeRequiresUser(t *testing.T) {
	resp := httptest.NewRecorder()
	Me(&stubCartService{}, stubAddresses{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartFetchQuotesWithCode(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/cart?code=%20SALE777%20", nil))
	resp := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.quotedCode != "SALE777" {
		t.Fatalf("expected trimmed code forwarded, got %q", svc.quotedCode)
	}
}

func TestCartFetchSurfacesGateRejection(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeValidation, "cart total too low").
		WithDetails(map[string]any{"field": "price", "reason": "minimum_amount"})}
	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/cart?code=SALE777", nil))
	resp := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "minimum_amount") {
		t.Fatalf("expected reason in body, got %s", resp.Body.String())
	}
}

func TestCartAddItemValidatesIDs(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product":"bad","color":"bad"}`)))
	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	product, color := types.NewObjectID(), types.NewObjectID()
	body := `{"product":"` + product.String() + `","color":"` + color.String() + `","quantity":3}`
	req = authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)))
	resp = httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.added.Product != product || svc.added.Color != color || svc.added.Quantity != 3 {
		t.Fatalf("unexpected input %+v", svc.added)
	}
}

func TestCartSetQuantity(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	req := authed(httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/x", strings.NewReader(`{"quantity":0}`)))
	req = withParam(req, "itemId", types.NewObjectID().String())
	resp := httptest.NewRecorder()
	CartSetQuantity(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity got %d", resp.Code)
	}

	req = authed(httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/x", strings.NewReader(`{"quantity":4}`)))
	req = withParam(req, "itemId", types.NewObjectID().String())
	resp = httptest.NewRecorder()
	CartSetQuantity(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || svc.quantity != 4 {
		t.Fatalf("expected quantity 4 applied, got %d / %d", resp.Code, svc.quantity)
	}
}

func TestCartEmpty(t *testing.T) {
	svc := &stubCartService{}
	resp := httptest.NewRecorder()
	CartEmpty(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)))
	if resp.Code != http.StatusOK || !svc.emptied {
		t.Fatalf("expected cart emptied, got %d", resp.Code)
	}
}
