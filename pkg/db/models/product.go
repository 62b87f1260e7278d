package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Product is a catalog listing. Prices and stock live on its colors.
type Product struct {
	ID         types.ObjectID   `gorm:"column:id;type:char(24);primaryKey"`
	Title      string           `gorm:"column:title;not null"`
	Warranty   int              `gorm:"column:warranty;not null;default:0"`
	Covers     types.StringList `gorm:"column:covers;type:text;not null"`
	BrandID    types.ObjectID   `gorm:"column:brand_id;type:char(24);not null;index"`
	CategoryID types.ObjectID   `gorm:"column:category_id;type:char(24);not null;index"`
	OfferID    *types.ObjectID  `gorm:"column:offer_id;type:char(24);index"`
	Colors     []Color          `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Brand      *Brand           `gorm:"foreignKey:BrandID"`
	Category   *Category        `gorm:"foreignKey:CategoryID"`
	Offer      *Offer           `gorm:"foreignKey:OfferID"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// Color is a purchasable variant of a product.
type Color struct {
	ID        types.ObjectID `gorm:"column:id;type:char(24);primaryKey"`
	ProductID types.ObjectID `gorm:"column:product_id;type:char(24);not null;index"`
	Name      string         `gorm:"column:name;not null"`
	Code      string         `gorm:"column:code;not null"`
	Price     int64          `gorm:"column:price;not null"`
	Inventory int            `gorm:"column:inventory;not null;default:0"`
}

func (c *Color) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
