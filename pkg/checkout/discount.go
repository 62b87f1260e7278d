package checkout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/technoshop/technoshop-backend/pkg/config"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
)

const (
	// CodeLength is the exact length of a discount code.
	CodeLength = 7

	ReasonCodeFormat    = "code_format"
	ReasonMinimumAmount = "minimum_amount"
	ReasonCategoryCount = "category_count"
)

var (
	codePattern      = regexp.MustCompile(`^[A-Za-z0-9]{7}$`)
	codeInputPattern = regexp.MustCompile(`^[A-Za-z0-9]{0,7}$`)
)

// DiscountRules bounds which carts may request a discount code.
type DiscountRules struct {
	// MinPrice is exclusive: the pre-code total must be strictly greater.
	MinPrice      int64
	MinCategories int
	MaxCategories int
}

// DefaultDiscountRules mirrors the storefront defaults.
func DefaultDiscountRules() DiscountRules {
	return DiscountRules{MinPrice: 1000, MinCategories: 1, MaxCategories: 7}
}

// RulesFromConfig reads the discount bounds from the checkout config.
func RulesFromConfig(cfg config.CheckoutConfig) DiscountRules {
	return DiscountRules{
		MinPrice:      cfg.DiscountMinPrice,
		MinCategories: cfg.DiscountMinCategories,
		MaxCategories: cfg.DiscountMaxCategories,
	}
}

// DiscountRequest is the body sent to the discount lookup.
type DiscountRequest struct {
	Code       string   `json:"code"`
	Price      int64    `json:"price"`
	Categories []string `json:"categories"`
}

// IsValidCode reports whether code is exactly seven ASCII letters or digits.
func IsValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// IsCodeInputAllowed reports whether a partially typed code can still become
// a valid one.
func IsCodeInputAllowed(partial string) bool {
	return codeInputPattern.MatchString(partial)
}

// ValidateDiscountRequest runs the local gate in order: code format, minimum
// amount, category count. The first failing check is returned and no lookup
// should be issued.
func ValidateDiscountRequest(rules DiscountRules, code string, summary pricing.Summary) (DiscountRequest, error) {
	return ValidateDiscountInput(rules, code, summary.ProductsPriceWithDiscount, summary.Categories)
}

// ValidateDiscountInput is ValidateDiscountRequest over raw values, used by
// the server to re-check a lookup request.
func ValidateDiscountInput(rules DiscountRules, code string, price int64, categories []string) (DiscountRequest, error) {
	code = strings.TrimSpace(code)
	if !IsValidCode(code) {
		return DiscountRequest{}, gateError("code", ReasonCodeFormat,
			fmt.Sprintf("discount code must be exactly %d letters or digits", CodeLength))
	}
	if price <= rules.MinPrice {
		return DiscountRequest{}, gateError("price", ReasonMinimumAmount,
			fmt.Sprintf("cart total must exceed %d to use a discount code", rules.MinPrice))
	}
	distinct := distinctCategories(categories)
	if len(distinct) < rules.MinCategories || len(distinct) > rules.MaxCategories {
		return DiscountRequest{}, gateError("categories", ReasonCategoryCount,
			fmt.Sprintf("cart must span between %d and %d categories", rules.MinCategories, rules.MaxCategories))
	}
	return DiscountRequest{Code: code, Price: price, Categories: distinct}, nil
}

// RejectionReason extracts the gate reason from err, if it came from the gate.
func RejectionReason(err error) (string, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		return "", false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return "", false
	}
	reason, ok := details["reason"].(string)
	return reason, ok && reason != ""
}

func gateError(field, reason, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{
		"field":  field,
		"reason": reason,
	})
}

func distinctCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	seen := make(map[string]struct{}, len(categories))
	for _, id := range categories {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
