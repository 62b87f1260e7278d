package address

import (
	"context"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Repository persists user addresses.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

// ListByUser returns the user's addresses oldest first, so the first entry is
// the default checkout destination.
func (r *Repository) ListByUser(ctx context.Context, userID types.ObjectID) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// FindForUser loads an address only when it belongs to userID.
func (r *Repository) FindForUser(ctx context.Context, userID, id types.ObjectID) (*models.Address, error) {
	var row models.Address
	if err := r.db.WithContext(ctx).First(&row, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// DeleteForUser removes the address and reports whether a row was deleted.
func (r *Repository) DeleteForUser(ctx context.Context, userID, id types.ObjectID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Address{})
	return res.RowsAffected > 0, res.Error
}
