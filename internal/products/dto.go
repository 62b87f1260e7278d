package product

import (
	"time"

	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// RefDTO is the compact brand/category shape embedded in products.
type RefDTO struct {
	ID           types.ObjectID `json:"id"`
	Title        string         `json:"title"`
	EnglishTitle string         `json:"englishTitle"`
}

// OfferDTO is the offer attached to a product.
type OfferDTO struct {
	ID        types.ObjectID `json:"id"`
	Title     string         `json:"title"`
	Percent   int            `json:"percent"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// ColorDTO is a purchasable variant.
type ColorDTO struct {
	ID        types.ObjectID `json:"id"`
	Name      string         `json:"name"`
	Code      string         `json:"code"`
	Price     int64          `json:"price"`
	Inventory int            `json:"inventory"`
}

// ProductDTO is the public product representation.
type ProductDTO struct {
	ID        types.ObjectID `json:"id"`
	Title     string         `json:"title"`
	Warranty  int            `json:"warranty"`
	Covers    []string       `json:"covers"`
	Brand     *RefDTO        `json:"brand,omitempty"`
	Category  *RefDTO        `json:"category,omitempty"`
	Offer     *OfferDTO      `json:"offer,omitempty"`
	Colors    []ColorDTO     `json:"colors"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ActiveOffer returns the pricing offer when it is still running at now.
func (p *ProductDTO) ActiveOffer(now time.Time) *pricing.Offer {
	if p == nil || p.Offer == nil {
		return nil
	}
	offer := &pricing.Offer{Percent: p.Offer.Percent, ExpiresAt: p.Offer.ExpiresAt}
	if !offer.Active(now) {
		return nil
	}
	return offer
}

// ColorInput is a color in create/update payloads. ID keeps an existing
// color on update so cart entries pointing at it survive.
type ColorInput struct {
	ID        *types.ObjectID `json:"id,omitempty"`
	Name      string          `json:"name" validate:"required,min=3,max=15"`
	Code      string          `json:"code" validate:"required"`
	Price     int64           `json:"price" validate:"gte=1000,lte=1000000000"`
	Inventory int             `json:"inventory" validate:"gte=1,lte=100000"`
}

// CreateProductInput is the admin create payload.
type CreateProductInput struct {
	Title    string         `json:"title" validate:"required,min=5,max=100"`
	Warranty int            `json:"warranty" validate:"gte=0,lte=100"`
	Covers   []string       `json:"covers" validate:"len=4,dive,required"`
	Brand    types.ObjectID `json:"brand" validate:"required,objectid"`
	Category types.ObjectID `json:"category" validate:"required,objectid"`
	Colors   []ColorInput   `json:"colors" validate:"min=1,max=10,dive"`
}

// UpdateProductInput holds optional mutations. Colors, when present, replace
// the full color set.
type UpdateProductInput struct {
	Title    *string         `json:"title,omitempty" validate:"omitempty,min=5,max=100"`
	Warranty *int            `json:"warranty,omitempty" validate:"omitempty,gte=0,lte=100"`
	Covers   *[]string       `json:"covers,omitempty"`
	Brand    *types.ObjectID `json:"brand,omitempty" validate:"omitempty,objectid"`
	Category *types.ObjectID `json:"category,omitempty" validate:"omitempty,objectid"`
	Colors   *[]ColorInput   `json:"colors,omitempty" validate:"omitempty,min=1,max=10,dive"`
}

// ListFilters narrow the public product listing.
type ListFilters struct {
	Category *types.ObjectID
	Brand    *types.ObjectID
	Query    string
}

func FromModel(m *models.Product) *ProductDTO {
	if m == nil {
		return nil
	}
	dto := &ProductDTO{
		ID:        m.ID,
		Title:     m.Title,
		Warranty:  m.Warranty,
		Covers:    append([]string{}, m.Covers...),
		Colors:    make([]ColorDTO, 0, len(m.Colors)),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Brand != nil {
		dto.Brand = &RefDTO{ID: m.Brand.ID, Title: m.Brand.Title, EnglishTitle: m.Brand.EnglishTitle}
	}
	if m.Category != nil {
		dto.Category = &RefDTO{ID: m.Category.ID, Title: m.Category.Title, EnglishTitle: m.Category.EnglishTitle}
	}
	if m.Offer != nil {
		dto.Offer = &OfferDTO{ID: m.Offer.ID, Title: m.Offer.Title, Percent: m.Offer.Percent, ExpiresAt: m.Offer.ExpiresAt}
	}
	for _, c := range m.Colors {
		dto.Colors = append(dto.Colors, ColorDTO{ID: c.ID, Name: c.Name, Code: c.Code, Price: c.Price, Inventory: c.Inventory})
	}
	return dto
}
