package discounts

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, code *models.DiscountCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// FindByCode matches codes case-insensitively.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var row models.DiscountCode
	if err := r.db.WithContext(ctx).Where("code = ?", strings.ToUpper(code)).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByID(ctx context.Context, id types.ObjectID) (*models.DiscountCode, error) {
	var row models.DiscountCode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) List(ctx context.Context) ([]models.DiscountCode, error) {
	var rows []models.DiscountCode
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Delete(ctx context.Context, id types.ObjectID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.DiscountCode{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

// ConsumeUse takes one use of the code if it is still redeemable at now and
// reports whether it did.
func (r *Repository) ConsumeUse(ctx context.Context, id types.ObjectID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.DiscountCode{}).
		Where("id = ? AND uses < max_uses AND (expires_at IS NULL OR expires_at > ?)", id, now).
		UpdateColumn("uses", gorm.Expr("uses + 1"))
	return res.RowsAffected == 1, res.Error
}

// DeleteExpiredBefore removes codes that expired at or before cutoff.
func (r *Repository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", cutoff).
		Delete(&models.DiscountCode{})
	return res.RowsAffected, res.Error
}
