package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/types"
)

// DiscountCode is a redeemable code applied on top of offer prices.
// An empty Categories list means the code is not scoped.
type DiscountCode struct {
	ID         types.ObjectID     `gorm:"column:id;type:char(24);primaryKey"`
	Code       string             `gorm:"column:code;type:varchar(7);not null;uniqueIndex"`
	Percent    int                `gorm:"column:percent;not null"`
	MaxUses    int                `gorm:"column:max_uses;not null;default:1"`
	Uses       int                `gorm:"column:uses;not null;default:0"`
	ExpiresAt  *time.Time         `gorm:"column:expires_at"`
	Categories types.ObjectIDList `gorm:"column:categories;type:text;not null"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DiscountCode) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
