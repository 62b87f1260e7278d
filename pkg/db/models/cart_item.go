package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/types"
)

// CartItem is one (product, color) entry of a user's cart.
type CartItem struct {
	ID        types.ObjectID `gorm:"column:id;type:char(24);primaryKey"`
	UserID    types.ObjectID `gorm:"column:user_id;type:char(24);not null;uniqueIndex:ux_cart_items_user_product_color"`
	ProductID types.ObjectID `gorm:"column:product_id;type:char(24);not null;uniqueIndex:ux_cart_items_user_product_color"`
	ColorID   types.ObjectID `gorm:"column:color_id;type:char(24);not null;uniqueIndex:ux_cart_items_user_product_color"`
	Quantity  int            `gorm:"column:quantity;not null"`
	Product   *Product       `gorm:"foreignKey:ProductID"`
	Color     *Color         `gorm:"foreignKey:ColorID"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
