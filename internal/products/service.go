package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/db"
	"github.com/technoshop/technoshop-backend/pkg/db/models"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/logger"
	"github.com/technoshop/technoshop-backend/pkg/pagination"
	"github.com/technoshop/technoshop-backend/pkg/redis"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

const (
	coverCount     = 4
	minColors      = 1
	maxColors      = 10
	minColorPrice  = 1000
	maxColorPrice  = 1_000_000_000
	minInventory   = 1
	maxInventory   = 100_000
	minTitleLength = 5
	maxTitleLength = 100
	maxWarranty    = 100
)

// Service exposes product management and browsing.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID types.ObjectID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID types.ObjectID) error
	GetProduct(ctx context.Context, productID types.ObjectID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	ListAmazingOffers(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	InvalidateCache(ctx context.Context, productIDs ...types.ObjectID)
}

type catalogChecker interface {
	BrandExists(ctx context.Context, id types.ObjectID) (bool, error)
	CategoryExists(ctx context.Context, id types.ObjectID) (bool, error)
}

// Cache is the product read cache. A redis.JSONCache[ProductDTO] satisfies it.
type Cache interface {
	Get(ctx context.Context, id string) (*ProductDTO, error)
	Set(ctx context.Context, id string, value *ProductDTO) error
	Delete(ctx context.Context, ids ...string) error
}

// ServiceParams groups product service dependencies. Cache and Logger are
// optional.
type ServiceParams struct {
	Repo    *Repository
	DB      *db.Client
	Catalog catalogChecker
	Cache   Cache
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo    *Repository
	db      *db.Client
	catalog catalogChecker
	cache   Cache
	loads   singleflight.Group
	logg    *logger.Logger
	now     func() time.Time
}

// NewService constructs a product service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog checker required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		db:      params.DB,
		catalog: params.Catalog,
		cache:   params.Cache,
		logg:    logg,
		now:     now,
	}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateWarranty(input.Warranty); err != nil {
		return nil, err
	}
	covers, err := normalizeCovers(input.Covers)
	if err != nil {
		return nil, err
	}
	colors, err := buildColors(input.Colors)
	if err != nil {
		return nil, err
	}
	if err := s.ensureRefs(ctx, input.Brand, input.Category); err != nil {
		return nil, err
	}

	row := &models.Product{
		Title:      title,
		Warranty:   input.Warranty,
		Covers:     covers,
		BrandID:    input.Brand,
		CategoryID: input.Category,
		Colors:     colors,
	}

	var created *models.Product
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if offerID, ok, err := activeOfferFor(ctx, tx, input.Category, s.now()); err != nil {
			return err
		} else if ok {
			row.OfferID = &offerID
		}
		if err := repo.Create(ctx, row); err != nil {
			return err
		}
		loaded, err := repo.FindByID(ctx, row.ID)
		if err != nil {
			return err
		}
		created = loaded
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return FromModel(created), nil
}

func (s *service) UpdateProduct(ctx context.Context, productID types.ObjectID, input UpdateProductInput) (*ProductDTO, error) {
	if input.Brand != nil {
		if err := s.ensureBrand(ctx, *input.Brand); err != nil {
			return nil, err
		}
	}
	if input.Category != nil {
		if err := s.ensureCategory(ctx, *input.Category); err != nil {
			return nil, err
		}
	}

	var updated *models.Product
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if err := validateTitle(title); err != nil {
				return err
			}
			current.Title = title
		}
		if input.Warranty != nil {
			if err := validateWarranty(*input.Warranty); err != nil {
				return err
			}
			current.Warranty = *input.Warranty
		}
		if input.Covers != nil {
			covers, err := normalizeCovers(*input.Covers)
			if err != nil {
				return err
			}
			current.Covers = covers
		}
		if input.Brand != nil {
			current.BrandID = *input.Brand
		}
		if input.Category != nil {
			current.CategoryID = *input.Category
		}
		if err := repo.UpdateFields(ctx, current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}

		if input.Colors != nil {
			colors, err := buildColors(*input.Colors)
			if err != nil {
				return err
			}
			existing, err := repo.ColorIDs(ctx, productID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load colors")
			}
			owned := make(map[types.ObjectID]struct{}, len(existing))
			for _, id := range existing {
				owned[id] = struct{}{}
			}
			for _, color := range colors {
				if color.ID.IsZero() {
					continue
				}
				if _, ok := owned[color.ID]; !ok {
					return pkgerrors.New(pkgerrors.CodeValidation, "color does not belong to product").
						WithDetails(map[string]any{"field": "colors", "id": color.ID})
				}
			}
			if err := repo.ReplaceColors(ctx, productID, colors); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace colors")
			}
		}

		reloaded, err := repo.FindByID(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateCache(ctx, productID)
	return FromModel(updated), nil
}

func (s *service) DeleteProduct(ctx context.Context, productID types.ObjectID) error {
	var deleted bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = s.repo.WithTx(tx).Delete(ctx, productID)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	s.InvalidateCache(ctx, productID)
	return nil
}

// GetProduct reads through the cache.
func (s *service) GetProduct(ctx context.Context, productID types.ObjectID) (*ProductDTO, error) {
	// concurrent misses for the same product share one load
	v, err, _ := s.loads.Do(productID.String(), func() (any, error) {
		return s.loadProduct(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	dto := *v.(*ProductDTO)
	return &dto, nil
}

func (s *service) loadProduct(ctx context.Context, productID types.ObjectID) (*ProductDTO, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, productID.String())
		switch {
		case err == nil:
			return cached, nil
		case !errors.Is(err, redis.ErrCacheMiss):
			s.logg.Warn(s.logg.WithField(ctx, "product_id", productID.String()), "product cache read failed: "+err.Error())
		}
	}

	row, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	dto := FromModel(row)
	if s.cache != nil {
		if err := s.cache.Set(ctx, productID.String(), dto); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", productID.String()), "product cache write failed: "+err.Error())
		}
	}
	return dto, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	rows, err := s.repo.List(ctx, input.Filters, input.Pagination)
	if err != nil {
		return nil, listError(err)
	}
	return toPage(rows, input.Pagination.Limit), nil
}

func (s *service) ListAmazingOffers(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	rows, err := s.repo.ListWithActiveOffer(ctx, s.now(), input.Pagination)
	if err != nil {
		return nil, listError(err)
	}
	return toPage(rows, input.Pagination.Limit), nil
}

// InvalidateCache drops cached reads for productIDs. Failures are logged; the
// TTL bounds staleness.
func (s *service) InvalidateCache(ctx context.Context, productIDs ...types.ObjectID) {
	if s.cache == nil || len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, id.String())
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logg.Warn(ctx, "product cache invalidation failed: "+err.Error())
	}
}

func (s *service) ensureRefs(ctx context.Context, brand, category types.ObjectID) error {
	if err := s.ensureBrand(ctx, brand); err != nil {
		return err
	}
	return s.ensureCategory(ctx, category)
}

func (s *service) ensureBrand(ctx context.Context, brand types.ObjectID) error {
	if !types.IsObjectIDHex(brand.String()) {
		return fieldError("brand", "must be a 24 character hex id")
	}
	ok, err := s.catalog.BrandExists(ctx, brand)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check brand")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "brand not found")
	}
	return nil
}

func (s *service) ensureCategory(ctx context.Context, category types.ObjectID) error {
	if !types.IsObjectIDHex(category.String()) {
		return fieldError("category", "must be a 24 character hex id")
	}
	ok, err := s.catalog.CategoryExists(ctx, category)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check category")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return nil
}

// activeOfferFor finds a running offer covering category so new products join
// existing campaigns.
func activeOfferFor(ctx context.Context, tx *gorm.DB, category types.ObjectID, now time.Time) (types.ObjectID, bool, error) {
	var offers []models.Offer
	if err := tx.WithContext(ctx).Where("expires_at > ?", now).Order("created_at DESC").Find(&offers).Error; err != nil {
		return "", false, err
	}
	for _, offer := range offers {
		if offer.Categories.Contains(category) {
			return offer.ID, true, nil
		}
	}
	return "", false, nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < minTitleLength || n > maxTitleLength {
		return fieldError("title", fmt.Sprintf("must be %d-%d characters", minTitleLength, maxTitleLength))
	}
	return nil
}

func validateWarranty(warranty int) error {
	if warranty < 0 || warranty > maxWarranty {
		return fieldError("warranty", fmt.Sprintf("must be between 0 and %d", maxWarranty))
	}
	return nil
}

func normalizeCovers(covers []string) (types.StringList, error) {
	if len(covers) != coverCount {
		return nil, fieldError("covers", fmt.Sprintf("exactly %d covers are required", coverCount))
	}
	out := make(types.StringList, 0, len(covers))
	for _, cover := range covers {
		cover = strings.TrimSpace(cover)
		if cover == "" {
			return nil, fieldError("covers", "covers must not be empty")
		}
		out = append(out, cover)
	}
	return out, nil
}

func buildColors(inputs []ColorInput) ([]models.Color, error) {
	if len(inputs) < minColors || len(inputs) > maxColors {
		return nil, fieldError("colors", fmt.Sprintf("between %d and %d colors are required", minColors, maxColors))
	}
	out := make([]models.Color, 0, len(inputs))
	seen := make(map[types.ObjectID]struct{}, len(inputs))
	for _, input := range inputs {
		name := strings.TrimSpace(input.Name)
		if n := utf8.RuneCountInString(name); n < 3 || n > 15 {
			return nil, fieldError("colors.name", "must be 3-15 characters")
		}
		code := strings.TrimSpace(input.Code)
		if code == "" {
			return nil, fieldError("colors.code", "is required")
		}
		if input.Price < minColorPrice || input.Price > maxColorPrice {
			return nil, fieldError("colors.price", fmt.Sprintf("must be between %d and %d", minColorPrice, maxColorPrice))
		}
		if input.Inventory < minInventory || input.Inventory > maxInventory {
			return nil, fieldError("colors.inventory", fmt.Sprintf("must be between %d and %d", minInventory, maxInventory))
		}
		color := models.Color{Name: name, Code: code, Price: input.Price, Inventory: input.Inventory}
		if input.ID != nil && !input.ID.IsZero() {
			if _, dup := seen[*input.ID]; dup {
				return nil, fieldError("colors.id", "duplicate color id")
			}
			seen[*input.ID] = struct{}{}
			color.ID = *input.ID
		}
		out = append(out, color)
	}
	return out, nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, field+" "+message).
		WithDetails(map[string]any{"field": field})
}

func listError(err error) error {
	if errors.Is(err, pagination.ErrInvalidCursor) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
}
