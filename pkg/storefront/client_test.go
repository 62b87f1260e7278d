package storefront

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/technoshop/technoshop-backend/pkg/checkout"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, maxFailures uint32) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(ClientParams{BaseURL: srv.URL, Token: "token", MaxFailures: maxFailures})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientParams{}); err == nil {
		t.Fatalf("expected error without base url")
	}
}

func TestClientMeDecodesEnvelope(t *testing.T) {
	addressID := types.NewObjectID()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/me" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("unexpected authorization %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"cart":{"items":[{"id":"` + types.NewObjectID().String() + `","quantity":2,` +
			`"product":{"id":"` + types.NewObjectID().String() + `","title":"Phone","categoryId":"` + types.NewObjectID().String() + `"},` +
			`"color":{"id":"` + types.NewObjectID().String() + `","name":"Black","price":500,"inventory":3}}],"summary":{}},` +
			`"addresses":[{"id":"` + addressID.String() + `","postalCode":"1234567890","body":"Main street 12"}]}}`))
	}, 0)

	account, err := client.Me(t.Context())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if account.Cart == nil || len(account.Cart.Items) != 1 {
		t.Fatalf("expected one cart item, got %+v", account.Cart)
	}
	entry := account.Cart.Items[0].Entry()
	if entry.Price != 500 || entry.Quantity != 2 || entry.Inventory != 3 || entry.Offer != nil {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if len(account.Addresses) != 1 || account.Addresses[0].ID != addressID {
		t.Fatalf("unexpected addresses %+v", account.Addresses)
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"discount code not found","details":{"field":"code"}}}`))
	}, 0)

	_, err := client.LookupDiscount(t.Context(), checkout.DiscountRequest{Code: "ABC1234", Price: 5000, Categories: []string{"c"}})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if typed.Message() != "discount code not found" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["field"] != "code" {
		t.Fatalf("expected details to survive, got %#v", typed.Details())
	}
}

func TestClientMapsBareStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}, 0)

	err := client.EmptyCart(t.Context())
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestClientCreateOrderSendsIdempotencyKey(t *testing.T) {
	orderID := types.NewObjectID()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Idempotency-Key"); got != "key-1" {
			t.Errorf("unexpected idempotency key %q", got)
		}
		var payload checkout.OrderPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.TotalPrice != 900 {
			t.Errorf("unexpected total %d", payload.TotalPrice)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"` + orderID.String() + `","status":"pending","totalPrice":900}}`))
	}, 0)

	receipt, err := client.CreateOrder(t.Context(), checkout.OrderPayload{TotalPrice: 900}, "key-1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if receipt.ID != orderID || receipt.Status != "pending" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}

func TestClientBreakerOpensOnServerFailures(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 2)

	for range 2 {
		if err := client.EmptyCart(t.Context()); !pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
			t.Fatalf("expected INTERNAL_ERROR, got %v", err)
		}
	}
	err := client.EmptyCart(t.Context())
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected open breaker to fail fast, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 requests to reach the server, got %d", hits.Load())
	}
}

func TestClientBreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusConflict)
	}, 1)

	for range 3 {
		if err := client.EmptyCart(t.Context()); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			t.Fatalf("expected CONFLICT, got %v", err)
		}
	}
	if hits.Load() != 3 {
		t.Fatalf("expected every request to reach the server, got %d", hits.Load())
	}
}
