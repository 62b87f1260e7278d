package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/internal/cart"
	"github.com/technoshop/technoshop-backend/internal/discounts"
	product "github.com/technoshop/technoshop-backend/internal/products"
	"github.com/technoshop/technoshop-backend/pkg/checkout"
	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/enums"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/logger"
	"github.com/technoshop/technoshop-backend/pkg/metrics"
	"github.com/technoshop/technoshop-backend/pkg/pagination"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Conflict reasons carried in STATE_CONFLICT details on submission.
const (
	ReasonCartChanged   = "cart_changed"
	ReasonTotalMismatch = "total_mismatch"
	ReasonOutOfStock    = "out_of_stock"
	ReasonDiscount      = "discount_unavailable"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressOwner interface {
	Owns(ctx context.Context, userID, id types.ObjectID) (bool, error)
}

type cacheInvalidator interface {
	InvalidateCache(ctx context.Context, productIDs ...types.ObjectID)
}

// Service exposes order submission and fulfilment.
type Service interface {
	Submit(ctx context.Context, userID types.ObjectID, payload checkout.OrderPayload) (*OrderDTO, error)
	Get(ctx context.Context, userID, orderID types.ObjectID) (*OrderDTO, error)
	ListForUser(ctx context.Context, userID types.ObjectID, params pagination.Params) (*OrderList, error)
	ListAll(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	SetStatus(ctx context.Context, orderID types.ObjectID, status enums.OrderStatus) (*OrderDTO, error)
}

// ServiceParams groups order service dependencies. Metrics, Logger,
// Invalidator and Clock are optional.
type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Carts       cart.CartRepository
	Products    *product.Repository
	Discounts   *discounts.Repository
	Addresses   addressOwner
	Rules       checkout.DiscountRules
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
	Invalidator cacheInvalidator
	Clock       func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	carts     cart.CartRepository
	products  *product.Repository
	discounts *discounts.Repository
	addresses addressOwner
	rules     checkout.DiscountRules
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	cache     cacheInvalidator
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("order repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("product repository required")
	case params.Discounts == nil:
		return nil, fmt.Errorf("discount repository required")
	case params.Addresses == nil:
		return nil, fmt.Errorf("address owner required")
	}
	if params.Rules.MaxCategories <= 0 {
		params.Rules = checkout.DefaultDiscountRules()
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		carts:     params.Carts,
		products:  params.Products,
		discounts: params.Discounts,
		addresses: params.Addresses,
		rules:     params.Rules,
		metrics:   params.Metrics,
		logg:      params.Logger,
		cache:     params.Invalidator,
		now:       params.Clock,
	}, nil
}

// Submit turns the user's cart into an order. The cart is re-read and
// re-priced inside the transaction; the payload must describe exactly the
// eligible cart lines and the total they price to.
func (s *service) Submit(ctx context.Context, userID types.ObjectID, payload checkout.OrderPayload) (*OrderDTO, error) {
	if err := checkout.ValidateOrderPayload(payload); err != nil {
		s.metrics.IncOrder(metrics.OrderOutcomeRejected)
		return nil, err
	}
	if payload.Destination != nil {
		owned, err := s.addresses.Owns(ctx, userID, *payload.Destination)
		if err != nil {
			s.metrics.IncOrder(metrics.OrderOutcomeFailed)
			return nil, err
		}
		if !owned {
			s.metrics.IncOrder(metrics.OrderOutcomeRejected)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "destination address not found")
		}
	}

	now := s.now()
	var (
		order   *models.Order
		touched []types.ObjectID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items, err := s.carts.WithTx(tx).ListForUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		lines := eligibleItems(items)
		if err := matchPayload(lines, payload.Products); err != nil {
			return err
		}

		entries := cart.Entries(lines)
		var code *models.DiscountCode
		if payload.DiscountCode != nil {
			code, err = s.redeemable(ctx, tx, payload.DiscountCode, entries, now)
			if err != nil {
				return err
			}
		}
		percent := 0
		if code != nil {
			percent = code.Percent
		}

		summary := pricing.Compute(entries, percent, now)
		if summary.TotalPrice != payload.TotalPrice {
			return conflict(ReasonTotalMismatch, "order total does not match the cart").
				WithDetails(map[string]any{"reason": ReasonTotalMismatch, "expected": summary.TotalPrice})
		}

		products := s.products.WithTx(tx)
		for _, line := range lines {
			ok, err := products.DecrementInventory(ctx, line.ColorID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement inventory")
			}
			if !ok {
				return conflict(ReasonOutOfStock, "not enough stock for "+line.Product.Title).
					WithDetails(map[string]any{"reason": ReasonOutOfStock, "product": line.ProductID, "color": line.ColorID})
			}
			touched = append(touched, line.ProductID)
		}

		if code != nil {
			ok, err := s.discounts.WithTx(tx).ConsumeUse(ctx, code.ID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume discount use")
			}
			if !ok {
				return conflict(ReasonDiscount, "discount code is no longer available")
			}
		}

		order = buildOrder(userID, payload.Destination, code, summary, lines, now)
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if _, err := s.carts.WithTx(tx).Empty(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "empty cart")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncOrder(outcomeOf(err))
		return nil, err
	}

	s.metrics.IncOrder(metrics.OrderOutcomeCreated)
	if s.cache != nil {
		s.cache.InvalidateCache(ctx, touched...)
	}
	logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), order.ID.String())
	s.logg.Info(logCtx, "order submitted")

	dto := FromModel(order)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, userID, orderID types.ObjectID) (*OrderDTO, error) {
	order, err := s.repo.FindForUser(ctx, userID, orderID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	dto := FromModel(order)
	return &dto, nil
}

func (s *service) ListForUser(ctx context.Context, userID types.ObjectID, params pagination.Params) (*OrderList, error) {
	return s.ListAll(ctx, ListFilters{UserID: &userID}, params)
}

func (s *service) ListAll(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	rows, err := s.repo.List(ctx, filters, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toList(rows, params.Limit), nil
}

// SetStatus advances an order along its lifecycle. Canceling returns the
// ordered quantities to stock.
func (s *service) SetStatus(ctx context.Context, orderID types.ObjectID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"field": "status"})
	}
	var (
		updated  *models.Order
		restored []types.ObjectID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		if !order.Status.CanTransitionTo(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, status))
		}
		ok, err := repo.UpdateStatus(ctx, orderID, order.Status, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		if status == enums.OrderStatusCanceled {
			products := s.products.WithTx(tx)
			for _, item := range order.Items {
				if err := products.RestockInventory(ctx, item.ColorID, item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock inventory")
				}
				restored = append(restored, item.ProductID)
			}
		}
		order.Status = status
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateCache(ctx, restored...)
	}
	dto := FromModel(updated)
	return &dto, nil
}

// redeemable re-runs the gate and the redemption checks for the code echoed
// in the payload. The stored percent is authoritative.
func (s *service) redeemable(ctx context.Context, tx *gorm.DB, applied *checkout.AppliedDiscount, entries []pricing.Entry, now time.Time) (*models.DiscountCode, error) {
	base := pricing.Compute(entries, 0, now)
	req, err := checkout.ValidateDiscountRequest(s.rules, applied.Code, base)
	if err != nil {
		return nil, err
	}
	code, err := s.discounts.WithTx(tx).FindByCode(ctx, req.Code)
	if err != nil {
		return nil, notFoundOr(err, "load discount code")
	}
	if !applied.ID.IsZero() && applied.ID != code.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
	}
	if err := discounts.Redeemable(code, req.Categories, now); err != nil {
		return nil, err
	}
	return code, nil
}

func eligibleItems(items []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		if item.Product == nil || item.Color == nil || item.Color.Inventory == 0 {
			continue
		}
		out = append(out, item)
	}
	return out
}

// matchPayload requires the payload to list exactly the eligible lines with
// their quantities.
func matchPayload(lines []models.CartItem, products []checkout.OrderProduct) error {
	if len(lines) == 0 {
		return conflict(ReasonCartChanged, "cart has no orderable items")
	}
	want := make(map[string]int, len(lines))
	for _, line := range lines {
		want[line.ProductID.String()+":"+line.ColorID.String()] = line.Quantity
	}
	if len(products) != len(want) {
		return conflict(ReasonCartChanged, "order products do not match the cart")
	}
	for _, p := range products {
		qty, ok := want[p.Product.String()+":"+p.Color.String()]
		if !ok || qty != p.Quantity {
			return conflict(ReasonCartChanged, "order products do not match the cart")
		}
	}
	return nil
}

func buildOrder(userID types.ObjectID, destination *types.ObjectID, code *models.DiscountCode, summary pricing.Summary, lines []models.CartItem, now time.Time) *models.Order {
	order := &models.Order{
		UserID:                    userID,
		Status:                    enums.OrderStatusPending,
		DestinationID:             destination,
		DiscountPercent:           summary.DiscountPercent,
		ProductsQuantity:          summary.ProductsQuantity,
		ProductsPrice:             summary.ProductsPrice,
		ProductsPriceWithDiscount: summary.ProductsPriceWithDiscount,
		AmazingOfferPrice:         summary.AmazingOfferPrice,
		DiscountAmount:            summary.DiscountAmount,
		TotalPrice:                summary.TotalPrice,
		Items:                     make([]models.OrderItem, 0, len(lines)),
	}
	if code != nil {
		id := code.ID
		order.DiscountCodeID = &id
	}
	for _, line := range lines {
		entry := cart.Entries([]models.CartItem{line})[0]
		offerPercent := 0
		if entry.Offer.Active(now) {
			offerPercent = entry.Offer.Percent
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID:    line.ProductID,
			ColorID:      line.ColorID,
			Title:        line.Product.Title,
			ColorName:    line.Color.Name,
			Quantity:     line.Quantity,
			UnitPrice:    line.Color.Price,
			OfferPercent: offerPercent,
			LineTotal:    pricing.Compute([]pricing.Entry{entry}, 0, now).ProductsPriceWithDiscount,
		})
	}
	return order
}

func conflict(reason, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"reason": reason})
}

func outcomeOf(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.OrderOutcomeFailed
	}
	if details, ok := typed.Details().(map[string]any); ok {
		switch details["reason"] {
		case ReasonTotalMismatch:
			return metrics.OrderOutcomeTotalMismatch
		case ReasonOutOfStock:
			return metrics.OrderOutcomeOutOfStock
		}
	}
	switch typed.Code() {
	case pkgerrors.CodeDependency, pkgerrors.CodeInternal:
		return metrics.OrderOutcomeFailed
	}
	return metrics.OrderOutcomeRejected
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, strings.TrimPrefix(message, "load ")+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
