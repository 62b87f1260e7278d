package offers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	product "github.com/technoshop/technoshop-backend/internal/products"
	"github.com/technoshop/technoshop-backend/pkg/db"
	"github.com/technoshop/technoshop-backend/pkg/db/models"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

const (
	minHours      = 1
	maxHours      = 10000
	maxCategories = 7
)

// OfferDTO is the admin representation of an offer.
type OfferDTO struct {
	ID           types.ObjectID   `json:"id"`
	Title        string           `json:"title"`
	EnglishTitle string           `json:"englishTitle"`
	Description  string           `json:"description"`
	Percent      int              `json:"percent"`
	ExpiresAt    time.Time        `json:"expiresAt"`
	Categories   []types.ObjectID `json:"categories"`
	Active       bool             `json:"active"`
	Products     int              `json:"products,omitempty"`
}

// CreateOfferInput creates an offer running for ExpiresInHours.
type CreateOfferInput struct {
	Title          string           `json:"title" validate:"required,min=5,max=100"`
	EnglishTitle   string           `json:"englishTitle" validate:"required,min=5,max=100"`
	Description    string           `json:"description" validate:"required,min=10,max=200"`
	Percent        int              `json:"percent" validate:"gte=1,lte=100"`
	ExpiresInHours int              `json:"expiresAt" validate:"gte=1,lte=10000"`
	Categories     []types.ObjectID `json:"categories" validate:"min=1,max=7,unique,dive,objectid"`
}

// UpdateOfferInput changes everything but the categories.
type UpdateOfferInput struct {
	Title          *string `json:"title,omitempty" validate:"omitempty,min=5,max=100"`
	EnglishTitle   *string `json:"englishTitle,omitempty" validate:"omitempty,min=5,max=100"`
	Description    *string `json:"description,omitempty" validate:"omitempty,min=10,max=200"`
	Percent        *int    `json:"percent,omitempty" validate:"omitempty,gte=1,lte=100"`
	ExpiresInHours *int    `json:"expiresAt,omitempty" validate:"omitempty,gte=1,lte=10000"`
}

type Service interface {
	Create(ctx context.Context, input CreateOfferInput) (*OfferDTO, error)
	Update(ctx context.Context, id types.ObjectID, input UpdateOfferInput) (*OfferDTO, error)
	Delete(ctx context.Context, id types.ObjectID) error
	Get(ctx context.Context, id types.ObjectID) (*OfferDTO, error)
	List(ctx context.Context) ([]OfferDTO, error)
	DetachExpired(ctx context.Context) (int, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type categoryCounter interface {
	CountCategories(ctx context.Context, ids []types.ObjectID) (int64, error)
}

type cacheInvalidator interface {
	InvalidateCache(ctx context.Context, productIDs ...types.ObjectID)
}

type ServiceParams struct {
	Repo        *Repository
	Products    *product.Repository
	DB          *db.Client
	Categories  categoryCounter
	Invalidator cacheInvalidator
	Clock       func() time.Time
}

type service struct {
	repo       *Repository
	products   *product.Repository
	db         *db.Client
	categories categoryCounter
	cache      cacheInvalidator
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Categories == nil {
		return nil, fmt.Errorf("category counter required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repo,
		products:   params.Products,
		db:         params.DB,
		categories: params.Categories,
		cache:      params.Invalidator,
		now:        now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOfferInput) (*OfferDTO, error) {
	offer := &models.Offer{
		Title:        strings.TrimSpace(input.Title),
		EnglishTitle: strings.TrimSpace(input.EnglishTitle),
		Description:  strings.TrimSpace(input.Description),
		Percent:      input.Percent,
	}
	if err := validateText(offer); err != nil {
		return nil, err
	}
	if err := validatePercent(offer.Percent); err != nil {
		return nil, err
	}
	expiresAt, err := s.expiry(input.ExpiresInHours)
	if err != nil {
		return nil, err
	}
	offer.ExpiresAt = expiresAt

	categories, err := distinctCategories(input.Categories)
	if err != nil {
		return nil, err
	}
	found, err := s.categories.CountCategories(ctx, categories)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check categories")
	}
	if found != int64(len(categories)) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	offer.Categories = categories

	var attached []types.ObjectID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, offer); err != nil {
			return err
		}
		attached, err = s.products.WithTx(tx).AttachOffer(ctx, offer.ID, categories)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
	}
	s.invalidate(ctx, attached)

	dto := s.toDTO(offer)
	dto.Products = len(attached)
	return dto, nil
}

func (s *service) Update(ctx context.Context, id types.ObjectID, input UpdateOfferInput) (*OfferDTO, error) {
	offer, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		offer.Title = strings.TrimSpace(*input.Title)
	}
	if input.EnglishTitle != nil {
		offer.EnglishTitle = strings.TrimSpace(*input.EnglishTitle)
	}
	if input.Description != nil {
		offer.Description = strings.TrimSpace(*input.Description)
	}
	if err := validateText(offer); err != nil {
		return nil, err
	}
	if input.Percent != nil {
		if err := validatePercent(*input.Percent); err != nil {
			return nil, err
		}
		offer.Percent = *input.Percent
	}
	if input.ExpiresInHours != nil {
		expiresAt, err := s.expiry(*input.ExpiresInHours)
		if err != nil {
			return nil, err
		}
		offer.ExpiresAt = expiresAt
	}

	var affected []types.ObjectID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, offer); err != nil {
			return err
		}
		affected, err = s.products.WithTx(tx).ProductIDsWithOffer(ctx, offer.ID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offer")
	}
	s.invalidate(ctx, affected)
	return s.toDTO(offer), nil
}

func (s *service) Delete(ctx context.Context, id types.ObjectID) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	var detached []types.ObjectID
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		detached, err = s.products.WithTx(tx).DetachOffer(ctx, id)
		if err != nil {
			return err
		}
		_, err = s.repo.WithTx(tx).Delete(ctx, id)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete offer")
	}
	s.invalidate(ctx, detached)
	return nil
}

func (s *service) Get(ctx context.Context, id types.ObjectID) (*OfferDTO, error) {
	offer, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toDTO(offer), nil
}

func (s *service) List(ctx context.Context) ([]OfferDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	out := make([]OfferDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *s.toDTO(&rows[i]))
	}
	return out, nil
}

// DetachExpired clears every expired offer from the products still carrying
// it and returns how many products changed.
func (s *service) DetachExpired(ctx context.Context) (int, error) {
	var detached []types.ObjectID
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		expired, err := s.repo.WithTx(tx).ExpiredIDs(ctx, s.now().UTC())
		if err != nil {
			return fmt.Errorf("list expired offers: %w", err)
		}
		detached, err = s.products.WithTx(tx).DetachOffer(ctx, expired...)
		if err != nil {
			return fmt.Errorf("detach expired offers: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, detached)
	return len(detached), nil
}

// DeleteExpiredBefore removes offers that expired at or before cutoff,
// detaching any product that still points at them.
func (s *service) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var (
		deleted  int64
		detached []types.ObjectID
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stale, err := repo.ExpiredIDs(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("list stale offers: %w", err)
		}
		detached, err = s.products.WithTx(tx).DetachOffer(ctx, stale...)
		if err != nil {
			return fmt.Errorf("detach stale offers: %w", err)
		}
		deleted, err = repo.Delete(ctx, stale...)
		if err != nil {
			return fmt.Errorf("delete stale offers: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, detached)
	return deleted, nil
}

func (s *service) load(ctx context.Context, id types.ObjectID) (*models.Offer, error) {
	offer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return offer, nil
}

func (s *service) expiry(hours int) (time.Time, error) {
	if hours < minHours || hours > maxHours {
		return time.Time{}, fieldError("expiresAt", fmt.Sprintf("must be between %d and %d hours", minHours, maxHours))
	}
	return s.now().UTC().Add(time.Duration(hours) * time.Hour), nil
}

func (s *service) invalidate(ctx context.Context, ids []types.ObjectID) {
	if s.cache != nil && len(ids) > 0 {
		s.cache.InvalidateCache(ctx, ids...)
	}
}

func (s *service) toDTO(offer *models.Offer) *OfferDTO {
	return &OfferDTO{
		ID:           offer.ID,
		Title:        offer.Title,
		EnglishTitle: offer.EnglishTitle,
		Description:  offer.Description,
		Percent:      offer.Percent,
		ExpiresAt:    offer.ExpiresAt,
		Categories:   append([]types.ObjectID{}, offer.Categories...),
		Active:       offer.ActiveAt(s.now()),
	}
}

func validateText(offer *models.Offer) error {
	if n := utf8.RuneCountInString(offer.Title); n < 5 || n > 100 {
		return fieldError("title", "must be 5-100 characters")
	}
	if n := utf8.RuneCountInString(offer.EnglishTitle); n < 5 || n > 100 {
		return fieldError("englishTitle", "must be 5-100 characters")
	}
	if n := utf8.RuneCountInString(offer.Description); n < 10 || n > 200 {
		return fieldError("description", "must be 10-200 characters")
	}
	return nil
}

func validatePercent(percent int) error {
	if percent < 1 || percent > 100 {
		return fieldError("percent", "must be between 1 and 100")
	}
	return nil
}

func distinctCategories(ids []types.ObjectID) (types.ObjectIDList, error) {
	if len(ids) < 1 || len(ids) > maxCategories {
		return nil, fieldError("categories", fmt.Sprintf("between 1 and %d categories are required", maxCategories))
	}
	seen := make(map[types.ObjectID]struct{}, len(ids))
	out := make(types.ObjectIDList, 0, len(ids))
	for _, id := range ids {
		if !types.IsObjectIDHex(id.String()) {
			return nil, fieldError("categories", "must be 24 character hex ids")
		}
		if _, dup := seen[id]; dup {
			return nil, fieldError("categories", "categories must be distinct")
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, field+" "+message).
		WithDetails(map[string]any{"field": field})
}
