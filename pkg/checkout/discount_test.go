package checkout

import (
	"reflect"
	"testing"

	"github.com/technoshop/technoshop-backend/pkg/config"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
)

func summaryWith(price int64, categories ...string) pricing.Summary {
	if categories == nil {
		categories = []string{}
	}
	return pricing.Summary{
		ProductsPrice:             price,
		ProductsPriceWithDiscount: price,
		TotalPrice:                price,
		Categories:                categories,
	}
}

func assertReason(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s rejection, got nil", want)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	reason, ok := RejectionReason(err)
	if !ok || reason != want {
		t.Fatalf("expected reason %q, got %q", want, reason)
	}
}

func TestValidateDiscountRequestRejectsShortCode(t *testing.T) {
	_, err := ValidateDiscountRequest(DefaultDiscountRules(), "ab12", summaryWith(50000, "c1"))
	assertReason(t, err, ReasonCodeFormat)
}

func TestValidateDiscountRequestRejectsLowTotal(t *testing.T) {
	_, err := ValidateDiscountRequest(DefaultDiscountRules(), "ABCD123", summaryWith(900, "c1"))
	assertReason(t, err, ReasonMinimumAmount)
}

func TestValidateDiscountRequestMinimumIsExclusive(t *testing.T) {
	_, err := ValidateDiscountRequest(DefaultDiscountRules(), "ABCD123", summaryWith(1000, "c1"))
	assertReason(t, err, ReasonMinimumAmount)

	if _, err := ValidateDiscountRequest(DefaultDiscountRules(), "ABCD123", summaryWith(1001, "c1")); err != nil {
		t.Fatalf("expected 1001 to pass, got %v", err)
	}
}

func TestValidateDiscountRequestUsesOfferDiscountedTotal(t *testing.T) {
	summary := pricing.Summary{
		ProductsPrice:             5000,
		ProductsPriceWithDiscount: 900,
		TotalPrice:                900,
		Categories:                []string{"c1"},
	}
	_, err := ValidateDiscountRequest(DefaultDiscountRules(), "ABCD123", summary)
	assertReason(t, err, ReasonMinimumAmount)
}

func TestValidateDiscountRequestCategoryBounds(t *testing.T) {
	rules := DefaultDiscountRules()

	_, err := ValidateDiscountRequest(rules, "ABCD123", summaryWith(5000))
	assertReason(t, err, ReasonCategoryCount)

	eight := []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8"}
	_, err = ValidateDiscountRequest(rules, "ABCD123", summaryWith(5000, eight...))
	assertReason(t, err, ReasonCategoryCount)

	req, err := ValidateDiscountRequest(rules, "ABCD123", summaryWith(5000, eight[:7]...))
	if err != nil {
		t.Fatalf("expected seven categories to pass, got %v", err)
	}
	if len(req.Categories) != 7 {
		t.Fatalf("expected 7 categories, got %d", len(req.Categories))
	}
}

func TestValidateDiscountRequestChecksInOrder(t *testing.T) {
	// Every check fails; the format check wins.
	_, err := ValidateDiscountRequest(DefaultDiscountRules(), "bad", summaryWith(10))
	assertReason(t, err, ReasonCodeFormat)

	_, err = ValidateDiscountRequest(DefaultDiscountRules(), "GOOD123", summaryWith(10))
	assertReason(t, err, ReasonMinimumAmount)
}

func TestValidateDiscountRequestSuccess(t *testing.T) {
	req, err := ValidateDiscountRequest(DefaultDiscountRules(), "  Tech024 ", summaryWith(25000, "c1", "c2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := DiscountRequest{Code: "Tech024", Price: 25000, Categories: []string{"c1", "c2"}}
	if !reflect.DeepEqual(req, want) {
		t.Fatalf("expected %+v, got %+v", want, req)
	}
}

func TestValidateDiscountInputCollapsesDuplicateCategories(t *testing.T) {
	rules := DiscountRules{MinPrice: 0, MinCategories: 1, MaxCategories: 2}
	req, err := ValidateDiscountInput(rules, "ABCDEFG", 10, []string{"a", "b", "a", "", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(req.Categories, []string{"a", "b"}) {
		t.Fatalf("unexpected categories %v", req.Categories)
	}
}

func TestCodeFormat(t *testing.T) {
	cases := map[string]bool{
		"ABCDEFG":  true,
		"abc1234":  true,
		"ABCDEF":   false,
		"ABCDEFGH": false,
		"ABC-EFG":  false,
		"ABCDEF۱":  false,
		"":         false,
	}
	for code, want := range cases {
		if got := IsValidCode(code); got != want {
			t.Fatalf("IsValidCode(%q) = %v, want %v", code, got, want)
		}
	}

	if !IsCodeInputAllowed("") || !IsCodeInputAllowed("ab1") || !IsCodeInputAllowed("ABCDEFG") {
		t.Fatal("expected partial codes to be allowed")
	}
	if IsCodeInputAllowed("ABCDEFGH") || IsCodeInputAllowed("ab 1") {
		t.Fatal("expected overlong or spaced input to be rejected")
	}
}

func TestRulesFromConfig(t *testing.T) {
	rules := RulesFromConfig(config.CheckoutConfig{DiscountMinPrice: 5000, DiscountMinCategories: 2, DiscountMaxCategories: 3})
	if rules.MinPrice != 5000 || rules.MinCategories != 2 || rules.MaxCategories != 3 {
		t.Fatalf("unexpected rules %+v", rules)
	}

	_, err := ValidateDiscountRequest(rules, "ABCD123", summaryWith(6000, "c1"))
	assertReason(t, err, ReasonCategoryCount)
}

func TestRejectionReasonIgnoresOtherErrors(t *testing.T) {
	if _, ok := RejectionReason(pkgerrors.New(pkgerrors.CodeNotFound, "missing")); ok {
		t.Fatal("expected no reason for not found")
	}
	if _, ok := RejectionReason(nil); ok {
		t.Fatal("expected no reason for nil")
	}
}
