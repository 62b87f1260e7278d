package discounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/checkout"
	"github.com/technoshop/technoshop-backend/pkg/db"
	"github.com/technoshop/technoshop-backend/pkg/db/models"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/metrics"
	"github.com/technoshop/technoshop-backend/pkg/security"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Redemption failure reasons carried in STATE_CONFLICT details.
const (
	ReasonExpired    = "expired"
	ReasonExhausted  = "exhausted"
	ReasonOutOfScope = "out_of_scope"
)

const (
	lookupApplied  = "applied"
	lookupNotFound = "not_found"
	lookupRejected = "rejected"
	maxGenerateTry = 5
)

// DiscountCodeDTO is the admin view of a code.
type DiscountCodeDTO struct {
	ID         types.ObjectID   `json:"id"`
	Code       string           `json:"code"`
	Percent    int              `json:"percent"`
	MaxUses    int              `json:"maxUses"`
	Uses       int              `json:"uses"`
	ExpiresAt  *time.Time       `json:"expiresAt"`
	Categories []types.ObjectID `json:"categories"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// CreateInput creates a code. An empty Code is generated.
type CreateInput struct {
	Code       string           `json:"code" validate:"omitempty,len=7,alphanum"`
	Percent    int              `json:"percent" validate:"gte=1,lte=100"`
	MaxUses    int              `json:"maxUses" validate:"gte=1"`
	ExpiresAt  *time.Time       `json:"expiresAt,omitempty"`
	Categories []types.ObjectID `json:"categories,omitempty" validate:"omitempty,max=7,unique,dive,objectid"`
}

type Service interface {
	Create(ctx context.Context, input CreateInput) (*DiscountCodeDTO, error)
	List(ctx context.Context) ([]DiscountCodeDTO, error)
	Delete(ctx context.Context, id types.ObjectID) error
	Use(ctx context.Context, req checkout.DiscountRequest) (*checkout.AppliedDiscount, error)
}

type categoryCounter interface {
	CountCategories(ctx context.Context, ids []types.ObjectID) (int64, error)
}

type ServiceParams struct {
	Repo       *Repository
	DB         *db.Client
	Categories categoryCounter
	Rules      checkout.DiscountRules
	Metrics    *metrics.CheckoutMetrics
	Clock      func() time.Time
	// Generate produces random codes; defaults to security.RandomCode.
	Generate func(length int) (string, error)
}

type service struct {
	repo       *Repository
	db         *db.Client
	categories categoryCounter
	rules      checkout.DiscountRules
	metrics    *metrics.CheckoutMetrics
	now        func() time.Time
	generate   func(int) (string, error)
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Categories == nil {
		return nil, fmt.Errorf("category counter required")
	}
	if params.Rules.MaxCategories <= 0 {
		params.Rules = checkout.DefaultDiscountRules()
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	if params.Generate == nil {
		params.Generate = security.RandomCode
	}
	return &service{
		repo:       params.Repo,
		db:         params.DB,
		categories: params.Categories,
		rules:      params.Rules,
		metrics:    params.Metrics,
		now:        params.Clock,
		generate:   params.Generate,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*DiscountCodeDTO, error) {
	if input.Percent < 1 || input.Percent > 100 {
		return nil, fieldError("percent", "must be between 1 and 100")
	}
	if input.MaxUses < 1 {
		return nil, fieldError("maxUses", "must be at least 1")
	}
	if input.ExpiresAt != nil && !s.now().Before(*input.ExpiresAt) {
		return nil, fieldError("expiresAt", "must be in the future")
	}
	categories, err := s.scope(ctx, input.Categories)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(input.Code))
	explicit := code != ""
	if explicit && !checkout.IsValidCode(code) {
		return nil, fieldError("code", fmt.Sprintf("must be %d letters or digits", checkout.CodeLength))
	}

	for attempt := 0; attempt < maxGenerateTry; attempt++ {
		if !explicit {
			code, err = s.generate(checkout.CodeLength)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
			}
			code = strings.ToUpper(code)
		}
		row := &models.DiscountCode{
			Code:       code,
			Percent:    input.Percent,
			MaxUses:    input.MaxUses,
			ExpiresAt:  input.ExpiresAt,
			Categories: categories,
		}
		err = s.repo.Create(ctx, row)
		if err == nil {
			return toDTO(row), nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount code")
		}
		if explicit {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "discount code already exists")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not generate a unique discount code")
}

func (s *service) List(ctx context.Context) ([]DiscountCodeDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list discount codes")
	}
	out := make([]DiscountCodeDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, id types.ObjectID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete discount code")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
	}
	return nil
}

// Use looks a code up for a cart. It re-applies the gate, then checks the code
// exists and is redeemable for the requested categories. No use is consumed.
func (s *service) Use(ctx context.Context, req checkout.DiscountRequest) (*checkout.AppliedDiscount, error) {
	gated, err := checkout.ValidateDiscountInput(s.rules, req.Code, req.Price, req.Categories)
	if err != nil {
		if reason, ok := checkout.RejectionReason(err); ok {
			s.metrics.IncGateRejection(reason)
		}
		s.metrics.IncDiscountLookup(lookupRejected)
		return nil, err
	}

	row, err := s.repo.FindByCode(ctx, gated.Code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncDiscountLookup(lookupNotFound)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount code")
	}

	if err := Redeemable(row, gated.Categories, s.now()); err != nil {
		s.metrics.IncDiscountLookup(reasonOf(err))
		return nil, err
	}
	s.metrics.IncDiscountLookup(lookupApplied)
	return &checkout.AppliedDiscount{ID: row.ID, Code: row.Code, Percent: row.Percent}, nil
}

// Redeemable checks expiry, remaining uses and category scope of a code.
func Redeemable(row *models.DiscountCode, categories []string, now time.Time) error {
	if row.ExpiresAt != nil && !now.Before(*row.ExpiresAt) {
		return conflict(ReasonExpired, "discount code has expired")
	}
	if row.Uses >= row.MaxUses {
		return conflict(ReasonExhausted, "discount code has no uses left")
	}
	if len(row.Categories) > 0 {
		for _, category := range categories {
			if !row.Categories.Contains(types.ObjectID(strings.ToLower(category))) {
				return conflict(ReasonOutOfScope, "discount code does not cover every cart category")
			}
		}
	}
	return nil
}

func (s *service) scope(ctx context.Context, ids []types.ObjectID) (types.ObjectIDList, error) {
	out := types.ObjectIDList{}
	if len(ids) == 0 {
		return out, nil
	}
	seen := make(map[types.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if !types.IsObjectIDHex(id.String()) {
			return nil, fieldError("categories", "must be 24 character hex ids")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	found, err := s.categories.CountCategories(ctx, out)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check categories")
	}
	if found != int64(len(out)) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return out, nil
}

func toDTO(row *models.DiscountCode) *DiscountCodeDTO {
	return &DiscountCodeDTO{
		ID:         row.ID,
		Code:       row.Code,
		Percent:    row.Percent,
		MaxUses:    row.MaxUses,
		Uses:       row.Uses,
		ExpiresAt:  row.ExpiresAt,
		Categories: append([]types.ObjectID{}, row.Categories...),
		CreatedAt:  row.CreatedAt,
	}
}

func reasonOf(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		if details, ok := typed.Details().(map[string]any); ok {
			if reason, ok := details["reason"].(string); ok {
				return reason
			}
		}
	}
	return lookupRejected
}

func conflict(reason, message string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"field": "code", "reason": reason})
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, field+" "+message).
		WithDetails(map[string]any{"field": field})
}
