package cart

import (
	"time"

	"github.com/technoshop/technoshop-backend/pkg/checkout"
	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// ItemDTO is one cart line as shown to the shopper.
type ItemDTO struct {
	ID       types.ObjectID `json:"id"`
	Quantity int            `json:"quantity"`
	Eligible bool           `json:"eligible"`
	// Unavailable marks a line whose product or color was removed from the
	// catalog. Such lines are shown so the shopper can delete them.
	Unavailable bool       `json:"unavailable,omitempty"`
	Product     ProductRef `json:"product"`
	Color       ColorRef   `json:"color"`
	Offer       *OfferRef  `json:"offer,omitempty"`
}

type ProductRef struct {
	ID         types.ObjectID `json:"id"`
	Title      string         `json:"title"`
	Cover      string         `json:"cover,omitempty"`
	CategoryID types.ObjectID `json:"categoryId"`
}

type ColorRef struct {
	ID        types.ObjectID `json:"id"`
	Name      string         `json:"name"`
	Code      string         `json:"code"`
	Price     int64          `json:"price"`
	Inventory int            `json:"inventory"`
}

type OfferRef struct {
	Percent   int       `json:"percent"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CartDTO is the cart with its pricing summary.
type CartDTO struct {
	Items    []ItemDTO                 `json:"items"`
	Summary  pricing.Summary           `json:"summary"`
	Discount *checkout.AppliedDiscount `json:"discount,omitempty"`
}

// Entries flattens loaded cart items into pricing entries. Items whose
// product or color no longer exists take no part in pricing.
func Entries(items []models.CartItem) []pricing.Entry {
	out := make([]pricing.Entry, 0, len(items))
	for _, item := range items {
		if item.Product == nil || item.Color == nil {
			continue
		}
		out = append(out, entryOf(item))
	}
	return out
}

func entryOf(item models.CartItem) pricing.Entry {
	entry := pricing.Entry{
		ProductID:  item.ProductID.String(),
		CategoryID: item.Product.CategoryID.String(),
		ColorID:    item.ColorID.String(),
		Price:      item.Color.Price,
		Inventory:  item.Color.Inventory,
		Quantity:   item.Quantity,
	}
	if item.Product.Offer != nil {
		entry.Offer = &pricing.Offer{Percent: item.Product.Offer.Percent, ExpiresAt: item.Product.Offer.ExpiresAt}
	}
	return entry
}

// Quote prices items at now with the discount applied on top.
func Quote(items []models.CartItem, discount *checkout.AppliedDiscount, now time.Time) *CartDTO {
	percent := 0
	if discount != nil {
		percent = discount.Percent
	}
	dto := &CartDTO{
		Items:    make([]ItemDTO, 0, len(items)),
		Summary:  pricing.Compute(Entries(items), percent, now),
		Discount: discount,
	}
	for _, item := range items {
		if item.Product == nil || item.Color == nil {
			dto.Items = append(dto.Items, unavailableLine(item))
			continue
		}
		line := ItemDTO{
			ID:       item.ID,
			Quantity: item.Quantity,
			Eligible: item.Color.Inventory != 0,
			Product: ProductRef{
				ID:         item.Product.ID,
				Title:      item.Product.Title,
				CategoryID: item.Product.CategoryID,
			},
			Color: ColorRef{
				ID:        item.Color.ID,
				Name:      item.Color.Name,
				Code:      item.Color.Code,
				Price:     item.Color.Price,
				Inventory: item.Color.Inventory,
			},
		}
		if len(item.Product.Covers) > 0 {
			line.Product.Cover = item.Product.Covers[0]
		}
		if offer := item.Product.Offer; offer.ActiveAt(now) {
			line.Offer = &OfferRef{Percent: offer.Percent, ExpiresAt: offer.ExpiresAt}
		}
		dto.Items = append(dto.Items, line)
	}
	return dto
}

func unavailableLine(item models.CartItem) ItemDTO {
	line := ItemDTO{
		ID:          item.ID,
		Quantity:    item.Quantity,
		Unavailable: true,
		Product:     ProductRef{ID: item.ProductID},
		Color:       ColorRef{ID: item.ColorID},
	}
	if item.Product != nil {
		line.Product.Title = item.Product.Title
		line.Product.CategoryID = item.Product.CategoryID
	}
	if item.Color != nil {
		line.Color.Name = item.Color.Name
		line.Color.Code = item.Color.Code
	}
	return line
}
