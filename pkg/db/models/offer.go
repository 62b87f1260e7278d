package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Offer is a time-bound percentage discount attached to every product of its
// categories.
type Offer struct {
	ID           types.ObjectID     `gorm:"column:id;type:char(24);primaryKey"`
	Title        string             `gorm:"column:title;not null"`
	EnglishTitle string             `gorm:"column:english_title;not null"`
	Description  string             `gorm:"column:description;not null"`
	Percent      int                `gorm:"column:percent;not null"`
	ExpiresAt    time.Time          `gorm:"column:expires_at;not null;index"`
	Categories   types.ObjectIDList `gorm:"column:categories;type:text;not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Offer) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// ActiveAt reports whether the offer still applies at now.
func (o *Offer) ActiveAt(now time.Time) bool {
	return o != nil && now.Before(o.ExpiresAt)
}
