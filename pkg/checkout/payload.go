package checkout

import (
	"fmt"

	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// AppliedDiscount is a discount code returned by the lookup and echoed back
// on order submission.
type AppliedDiscount struct {
	ID      types.ObjectID `json:"id"`
	Code    string         `json:"code"`
	Percent int            `json:"percent"`
}

// OrderProduct is a single orderable line.
type OrderProduct struct {
	Quantity int            `json:"quantity"`
	Product  types.ObjectID `json:"product"`
	Color    types.ObjectID `json:"color"`
}

// OrderPayload is the body of an order submission. Destination and
// DiscountCode encode as null when absent.
type OrderPayload struct {
	TotalPrice   int64            `json:"totalPrice"`
	Products     []OrderProduct   `json:"products"`
	Destination  *types.ObjectID  `json:"destination"`
	DiscountCode *AppliedDiscount `json:"discountCode"`
}

// DiscountPercent returns the applied percent, or zero without a code.
func (p OrderPayload) DiscountPercent() int {
	if p.DiscountCode == nil {
		return 0
	}
	return p.DiscountCode.Percent
}

// BuildOrderPayload assembles the submission from the eligible entries only.
// The destination is chosen when it is one of addresses, otherwise the first
// address, otherwise null.
func BuildOrderPayload(entries []pricing.Entry, summary pricing.Summary, addresses []types.ObjectID, chosen types.ObjectID, discount *AppliedDiscount) OrderPayload {
	payload := OrderPayload{
		TotalPrice: summary.TotalPrice,
		Products:   make([]OrderProduct, 0, len(entries)),
	}
	for _, entry := range pricing.Eligible(entries) {
		payload.Products = append(payload.Products, OrderProduct{
			Quantity: entry.Quantity,
			Product:  types.ObjectID(entry.ProductID),
			Color:    types.ObjectID(entry.ColorID),
		})
	}
	if dest, ok := resolveDestination(addresses, chosen); ok {
		payload.Destination = &dest
	}
	if discount != nil {
		applied := *discount
		payload.DiscountCode = &applied
	}
	return payload
}

func resolveDestination(addresses []types.ObjectID, chosen types.ObjectID) (types.ObjectID, bool) {
	if len(addresses) == 0 {
		return "", false
	}
	if !chosen.IsZero() {
		for _, id := range addresses {
			if id == chosen {
				return id, true
			}
		}
	}
	return addresses[0], true
}

// ValidateOrderPayload performs the structural checks on a submitted payload.
// Totals are verified later against a fresh quote.
func ValidateOrderPayload(payload OrderPayload) error {
	if payload.TotalPrice < 0 {
		return fieldError("totalPrice", "must not be negative")
	}
	if len(payload.Products) == 0 {
		return fieldError("products", "at least one product is required")
	}
	seen := make(map[string]struct{}, len(payload.Products))
	for i, line := range payload.Products {
		field := fmt.Sprintf("products[%d]", i)
		if line.Quantity <= 0 {
			return fieldError(field+".quantity", "must be greater than zero")
		}
		if !types.IsObjectIDHex(line.Product.String()) {
			return fieldError(field+".product", "must be a 24 character hex id")
		}
		if !types.IsObjectIDHex(line.Color.String()) {
			return fieldError(field+".color", "must be a 24 character hex id")
		}
		key := line.Product.String() + ":" + line.Color.String()
		if _, dup := seen[key]; dup {
			return fieldError(field, "duplicate product and color")
		}
		seen[key] = struct{}{}
	}
	if payload.Destination != nil && !types.IsObjectIDHex(payload.Destination.String()) {
		return fieldError("destination", "must be a 24 character hex id")
	}
	if d := payload.DiscountCode; d != nil {
		if !IsValidCode(d.Code) {
			return fieldError("discountCode.code", "invalid discount code")
		}
		if d.Percent < 0 || d.Percent > 100 {
			return fieldError("discountCode.percent", "must be between 0 and 100")
		}
	}
	return nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, field+" "+message).WithDetails(map[string]any{
		"field": field,
	})
}
