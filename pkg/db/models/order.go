package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/enums"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Order is a submitted checkout with its priced snapshot.
type Order struct {
	ID                        types.ObjectID    `gorm:"column:id;type:char(24);primaryKey"`
	UserID                    types.ObjectID    `gorm:"column:user_id;type:char(24);not null;index"`
	Status                    enums.OrderStatus `gorm:"column:status;type:varchar(16);not null;default:'pending'"`
	DestinationID             *types.ObjectID   `gorm:"column:destination_id;type:char(24)"`
	DiscountCodeID            *types.ObjectID   `gorm:"column:discount_code_id;type:char(24)"`
	DiscountPercent           int               `gorm:"column:discount_percent;not null;default:0"`
	ProductsQuantity          int               `gorm:"column:products_quantity;not null"`
	ProductsPrice             int64             `gorm:"column:products_price;not null"`
	ProductsPriceWithDiscount int64             `gorm:"column:products_price_with_discount;not null"`
	AmazingOfferPrice         int64             `gorm:"column:amazing_offer_price;not null"`
	DiscountAmount            int64             `gorm:"column:discount_amount;not null"`
	TotalPrice                int64             `gorm:"column:total_price;not null"`
	Items                     []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt                 time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem snapshots one ordered line at submission time.
type OrderItem struct {
	ID           types.ObjectID `gorm:"column:id;type:char(24);primaryKey"`
	OrderID      types.ObjectID `gorm:"column:order_id;type:char(24);not null;index"`
	ProductID    types.ObjectID `gorm:"column:product_id;type:char(24);not null"`
	ColorID      types.ObjectID `gorm:"column:color_id;type:char(24);not null"`
	Title        string         `gorm:"column:title;not null"`
	ColorName    string         `gorm:"column:color_name;not null"`
	Quantity     int            `gorm:"column:quantity;not null"`
	UnitPrice    int64          `gorm:"column:unit_price;not null"`
	OfferPercent int            `gorm:"column:offer_percent;not null;default:0"`
	LineTotal    int64          `gorm:"column:line_total;not null"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
