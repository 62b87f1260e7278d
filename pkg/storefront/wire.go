package storefront

import (
	"time"

	"github.com/technoshop/technoshop-backend/pkg/checkout"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Account is the /me snapshot.
type Account struct {
	Cart      *Cart     `json:"cart"`
	Addresses []Address `json:"addresses"`
}

type Cart struct {
	Items    []CartItem                `json:"items"`
	Summary  pricing.Summary           `json:"summary"`
	Discount *checkout.AppliedDiscount `json:"discount,omitempty"`
}

type CartItem struct {
	ID       types.ObjectID `json:"id"`
	Quantity int            `json:"quantity"`
	Product  struct {
		ID         types.ObjectID `json:"id"`
		Title      string         `json:"title"`
		CategoryID types.ObjectID `json:"categoryId"`
	} `json:"product"`
	Color struct {
		ID        types.ObjectID `json:"id"`
		Name      string         `json:"name"`
		Price     int64          `json:"price"`
		Inventory int            `json:"inventory"`
	} `json:"color"`
	Offer *struct {
		Percent   int       `json:"percent"`
		ExpiresAt time.Time `json:"expiresAt"`
	} `json:"offer,omitempty"`
}

type Address struct {
	ID         types.ObjectID `json:"id"`
	PostalCode string         `json:"postalCode"`
	Body       string         `json:"body"`
}

// OrderReceipt is the part of a created order the session reports back.
type OrderReceipt struct {
	ID         types.ObjectID `json:"id"`
	Status     string         `json:"status"`
	TotalPrice int64          `json:"totalPrice"`
}

// Entry flattens the item for pricing.
func (i CartItem) Entry() pricing.Entry {
	entry := pricing.Entry{
		ProductID:  i.Product.ID.String(),
		CategoryID: i.Product.CategoryID.String(),
		ColorID:    i.Color.ID.String(),
		Price:      i.Color.Price,
		Inventory:  i.Color.Inventory,
		Quantity:   i.Quantity,
	}
	if i.Offer != nil {
		entry.Offer = &pricing.Offer{Percent: i.Offer.Percent, ExpiresAt: i.Offer.ExpiresAt}
	}
	return entry
}

func entriesOf(cart *Cart) []pricing.Entry {
	if cart == nil {
		return nil
	}
	out := make([]pricing.Entry, 0, len(cart.Items))
	for _, item := range cart.Items {
		out = append(out, item.Entry())
	}
	return out
}
