package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	product "github.com/technoshop/technoshop-backend/internal/products"
	"github.com/technoshop/technoshop-backend/pkg/checkout"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type discountLookup interface {
	Use(ctx context.Context, req checkout.DiscountRequest) (*checkout.AppliedDiscount, error)
}

// AddItemInput adds quantity units of a product color.
type AddItemInput struct {
	Product  types.ObjectID `json:"product" validate:"required,objectid"`
	Color    types.ObjectID `json:"color" validate:"required,objectid"`
	Quantity int            `json:"quantity" validate:"omitempty,gte=1"`
}

// Service exposes cart operations for the owning user.
type Service interface {
	Get(ctx context.Context, userID types.ObjectID) (*CartDTO, error)
	Quote(ctx context.Context, userID types.ObjectID, code string) (*CartDTO, error)
	AddItem(ctx context.Context, userID types.ObjectID, input AddItemInput) (*CartDTO, error)
	SetQuantity(ctx context.Context, userID, itemID types.ObjectID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, itemID types.ObjectID) (*CartDTO, error)
	Empty(ctx context.Context, userID types.ObjectID) error
}

type service struct {
	repo      CartRepository
	tx        txRunner
	products  *product.Repository
	discounts discountLookup
	rules     checkout.DiscountRules
	now       func() time.Time
}

// NewService builds a cart service backed by the provided stack. discounts
// may be nil, in which case quotes ignore codes.
func NewService(repo CartRepository, tx txRunner, products *product.Repository, discounts discountLookup, rules checkout.DiscountRules) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if rules.MaxCategories <= 0 {
		rules = checkout.DefaultDiscountRules()
	}
	return &service{
		repo:      repo,
		tx:        tx,
		products:  products,
		discounts: discounts,
		rules:     rules,
		now:       time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, userID types.ObjectID) (*CartDTO, error) {
	return s.Quote(ctx, userID, "")
}

// Quote prices the cart. A non-empty code goes through the discount gate and
// lookup first; its errors are returned as-is.
func (s *service) Quote(ctx context.Context, userID types.ObjectID, code string) (*CartDTO, error) {
	items, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	now := s.now()
	code = strings.TrimSpace(code)
	if code == "" || s.discounts == nil {
		return Quote(items, nil, now), nil
	}

	base := Quote(items, nil, now)
	req, err := checkout.ValidateDiscountRequest(s.rules, code, base.Summary)
	if err != nil {
		return nil, err
	}
	applied, err := s.discounts.Use(ctx, req)
	if err != nil {
		return nil, err
	}
	return Quote(items, applied, now), nil
}

func (s *service) AddItem(ctx context.Context, userID types.ObjectID, input AddItemInput) (*CartDTO, error) {
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		color, err := s.products.WithTx(tx).FindColorForUpdate(ctx, input.Product, input.Color)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product color not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load color")
		}

		existing, err := repo.FindByProductColor(ctx, userID, input.Product, input.Color)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		total := quantity
		if existing != nil {
			total += existing.Quantity
		}
		if total > color.Inventory {
			return stockError(color.Inventory)
		}
		if existing != nil {
			return wrapDependency(repo.SetQuantity(ctx, existing.ID, total), "update cart item")
		}
		item := newItem(userID, input.Product, input.Color, total)
		return wrapDependency(repo.Create(ctx, item), "create cart item")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *service) SetQuantity(ctx context.Context, userID, itemID types.ObjectID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindForUser(ctx, userID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		color, err := s.products.WithTx(tx).FindColorForUpdate(ctx, item.ProductID, item.ColorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load color")
		}
		if quantity > color.Inventory {
			return stockError(color.Inventory)
		}
		return wrapDependency(repo.SetQuantity(ctx, item.ID, quantity), "update cart item")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID types.ObjectID) (*CartDTO, error) {
	deleted, err := s.repo.Delete(ctx, userID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	if !deleted {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.Get(ctx, userID)
}

func (s *service) Empty(ctx context.Context, userID types.ObjectID) error {
	if _, err := s.repo.Empty(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "empty cart")
	}
	return nil
}

func stockError(available int) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "not enough stock").
		WithDetails(map[string]any{"field": "quantity", "available": available})
}

func wrapDependency(err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
