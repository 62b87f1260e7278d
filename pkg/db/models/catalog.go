package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Brand groups products by manufacturer.
type Brand struct {
	ID           types.ObjectID `gorm:"column:id;type:char(24);primaryKey"`
	Title        string         `gorm:"column:title;not null"`
	EnglishTitle string         `gorm:"column:english_title;not null;uniqueIndex"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Brand) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// Category groups products for navigation, offers and discount scoping.
type Category struct {
	ID           types.ObjectID `gorm:"column:id;type:char(24);primaryKey"`
	Title        string         `gorm:"column:title;not null"`
	EnglishTitle string         `gorm:"column:english_title;not null;uniqueIndex"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
