// Package pricing derives the cart pricing summary shown at checkout.
//
// Compute is a pure function of the cart snapshot, the applied discount-code
// percent and the reference time. Callers recompute on every change instead
// of patching a previous summary.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Offer is a time-bound percentage discount attached to a product.
type Offer struct {
	Percent   int
	ExpiresAt time.Time
}

// Active reports whether the offer still applies at now. An offer expiring
// exactly at now is already expired.
func (o *Offer) Active(now time.Time) bool {
	return o != nil && now.Before(o.ExpiresAt)
}

// Entry is one cart line flattened with the product and color data pricing
// needs. Price is in whole Toman.
type Entry struct {
	ProductID  string
	CategoryID string
	ColorID    string
	Price      int64
	Inventory  int
	Quantity   int
	Offer      *Offer
}

// Eligible reports whether the entry participates in pricing and checkout.
func (e Entry) Eligible() bool {
	return e.Inventory != 0
}

// Summary is the derived pricing of a cart. Monetary fields are whole Toman.
type Summary struct {
	ProductsQuantity          int      `json:"productsQuantity"`
	ProductsPrice             int64    `json:"productsPrice"`
	ProductsPriceWithDiscount int64    `json:"productsPriceWithDiscount"`
	AmazingOfferPrice         int64    `json:"amazingOfferPrice"`
	AmazingOfferPercent       int      `json:"amazingOfferPercent"`
	DiscountPercent           int      `json:"discountPercent"`
	DiscountAmount            int64    `json:"discountAmount"`
	TotalPrice                int64    `json:"totalPrice"`
	Categories                []string `json:"categories"`
	HasActiveOffer            bool     `json:"hasActiveOffer"`
	EligibleCount             int      `json:"eligibleCount"`
}

// CanCheckout reports whether at least one entry can be ordered.
func (s Summary) CanCheckout() bool {
	return s.EligibleCount > 0
}

// Eligible returns the entries with stock, preserving order.
func Eligible(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Eligible() {
			out = append(out, entry)
		}
	}
	return out
}

// Compute derives the pricing summary for entries at now, applying
// discountPercent on top of the offer-discounted subtotal.
//
// Arithmetic is exact; each aggregate is rounded to whole Toman once.
// AmazingOfferPrice is rounded and ProductsPriceWithDiscount is derived from
// it so the two always add up to ProductsPrice.
func Compute(entries []Entry, discountPercent int, now time.Time) Summary {
	var (
		summary = Summary{Categories: []string{}}
		list    = decimal.Zero
		saved   = decimal.Zero
		seen    = make(map[string]struct{})
	)

	for _, entry := range entries {
		if !entry.Eligible() {
			continue
		}
		summary.EligibleCount++
		summary.ProductsQuantity += entry.Quantity

		line := decimal.NewFromInt(entry.Price).Mul(decimal.NewFromInt(int64(entry.Quantity)))
		list = list.Add(line)

		if entry.Offer.Active(now) {
			summary.HasActiveOffer = true
			saved = saved.Add(percentOf(line, entry.Offer.Percent))
		}

		if entry.CategoryID == "" {
			continue
		}
		if _, ok := seen[entry.CategoryID]; !ok {
			seen[entry.CategoryID] = struct{}{}
			summary.Categories = append(summary.Categories, entry.CategoryID)
		}
	}

	summary.ProductsPrice = list.IntPart()
	summary.AmazingOfferPrice = saved.Round(0).IntPart()
	summary.ProductsPriceWithDiscount = summary.ProductsPrice - summary.AmazingOfferPrice
	if summary.ProductsPrice > 0 {
		summary.AmazingOfferPercent = int(decimal.NewFromInt(summary.AmazingOfferPrice).
			Mul(hundred).
			Div(decimal.NewFromInt(summary.ProductsPrice)).
			Round(0).
			IntPart())
	}

	summary.DiscountPercent = clampPercent(discountPercent)
	subtotal := decimal.NewFromInt(summary.ProductsPriceWithDiscount)
	summary.TotalPrice = subtotal.Sub(percentOf(subtotal, summary.DiscountPercent)).Round(0).IntPart()
	summary.DiscountAmount = summary.ProductsPriceWithDiscount - summary.TotalPrice

	return summary
}

func percentOf(amount decimal.Decimal, percent int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(clampPercent(percent)))).Div(hundred)
}

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
