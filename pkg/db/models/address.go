package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Address is a delivery destination owned by a user.
type Address struct {
	ID         types.ObjectID `gorm:"column:id;type:char(24);primaryKey"`
	UserID     types.ObjectID `gorm:"column:user_id;type:char(24);not null;index"`
	PostalCode string         `gorm:"column:postal_code;type:varchar(10);not null"`
	Body       string         `gorm:"column:body;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
