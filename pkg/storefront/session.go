package storefront

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/technoshop/technoshop-backend/pkg/checkout"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/logger"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// API is the remote surface a Session drives. *Client implements it.
type API interface {
	Me(ctx context.Context) (*Account, error)
	LookupDiscount(ctx context.Context, req checkout.DiscountRequest) (*checkout.AppliedDiscount, error)
	CreateOrder(ctx context.Context, payload checkout.OrderPayload, idempotencyKey string) (*OrderReceipt, error)
	EmptyCart(ctx context.Context) error
}

// Session is one shopper's checkout state. Methods are safe for concurrent
// use; the lock is released while a request is outstanding and the pending
// flags reject overlapping lookups or submissions.
type Session struct {
	api   API
	rules checkout.DiscountRules
	logg  *logger.Logger

	mu            sync.Mutex
	entries       []pricing.Entry
	addresses     []Address
	discount      *checkout.AppliedDiscount
	destination   types.ObjectID
	lookupPending bool
	submitPending bool
	orderKey      string
}

func NewSession(api API, rules checkout.DiscountRules, logg *logger.Logger) *Session {
	return &Session{api: api, rules: rules, logg: logg}
}

// Refresh reloads the cart and addresses. The chosen destination survives
// when it still exists, otherwise the first address is selected.
func (s *Session) Refresh(ctx context.Context) error {
	account, err := s.api.Me(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var cart *Cart
	if account != nil {
		cart = account.Cart
		s.addresses = account.Addresses
	} else {
		s.addresses = nil
	}
	s.entries = entriesOf(cart)
	s.orderKey = ""
	if !s.hasAddress(s.destination) {
		s.destination = ""
		if len(s.addresses) > 0 {
			s.destination = s.addresses[0].ID
		}
	}
	return nil
}

// Summary prices the current cart with the applied code at now.
func (s *Session) Summary(now time.Time) pricing.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Compute(s.entries, s.discountPercent(), now)
}

func (s *Session) Entries() []pricing.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

func (s *Session) Addresses() []Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.addresses)
}

func (s *Session) Destination() types.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destination
}

// Discount returns the applied code, or nil.
func (s *Session) Discount() *checkout.AppliedDiscount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discount == nil {
		return nil
	}
	applied := *s.discount
	return &applied
}

// SelectDestination chooses one of the loaded addresses.
func (s *Session) SelectDestination(id types.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasAddress(id) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found").WithDetails(map[string]any{"field": "destination"})
	}
	s.destination = id
	return nil
}

// ApplyDiscountCode gates code locally and, when it passes, resolves it
// remotely. A failed gate never reaches the network.
func (s *Session) ApplyDiscountCode(ctx context.Context, code string, now time.Time) (*checkout.AppliedDiscount, error) {
	s.mu.Lock()
	if s.discount != nil {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "discount code already applied")
	}
	if s.lookupPending {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "discount lookup already pending")
	}
	summary := pricing.Compute(s.entries, 0, now)
	req, err := checkout.ValidateDiscountRequest(s.rules, code, summary)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.lookupPending = true
	s.mu.Unlock()

	applied, err := s.api.LookupDiscount(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupPending = false
	if err != nil {
		s.logFailure(ctx, "discount lookup failed", err)
		return nil, err
	}
	if applied == nil {
		err = pkgerrors.New(pkgerrors.CodeDependency, "discount lookup returned no result")
		s.logFailure(ctx, "discount lookup failed", err)
		return nil, err
	}
	s.discount = applied
	s.orderKey = ""
	out := *applied
	return &out, nil
}

// SubmitOrder sends the eligible entries as an order. On success the local
// cart and discount are cleared; on failure the state is kept. A retryable
// failure keeps the idempotency key for the next attempt, any other failure
// was answered (and stored) by the server so the next attempt gets a new key.
func (s *Session) SubmitOrder(ctx context.Context, now time.Time) (*OrderReceipt, error) {
	s.mu.Lock()
	if s.submitPending {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order submission already pending")
	}
	summary := pricing.Compute(s.entries, s.discountPercent(), now)
	if !summary.CanCheckout() {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has no orderable items")
	}
	payload := checkout.BuildOrderPayload(s.entries, summary, s.addressIDs(), s.destination, s.discount)
	if s.orderKey == "" {
		s.orderKey = uuid.NewString()
	}
	key := s.orderKey
	s.submitPending = true
	s.mu.Unlock()

	receipt, err := s.api.CreateOrder(ctx, payload, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitPending = false
	if err != nil {
		if !pkgerrors.Retryable(err) {
			s.orderKey = ""
		}
		s.logFailure(ctx, "order submission failed", err)
		return nil, err
	}
	s.entries = nil
	s.discount = nil
	s.orderKey = ""
	return receipt, nil
}

// EmptyCart clears the remote cart, then the local snapshot.
func (s *Session) EmptyCart(ctx context.Context) error {
	if err := s.api.EmptyCart(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.discount = nil
	s.orderKey = ""
	return nil
}

func (s *Session) discountPercent() int {
	if s.discount == nil {
		return 0
	}
	return s.discount.Percent
}

func (s *Session) addressIDs() []types.ObjectID {
	ids := make([]types.ObjectID, 0, len(s.addresses))
	for _, addr := range s.addresses {
		ids = append(ids, addr.ID)
	}
	return ids
}

func (s *Session) hasAddress(id types.ObjectID) bool {
	if id.IsZero() {
		return false
	}
	for _, addr := range s.addresses {
		if addr.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) logFailure(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	if pkgerrors.Retryable(err) {
		s.logg.Error(ctx, msg, err)
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
