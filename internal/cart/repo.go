package cart

import (
	"context"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Repository exposes persistence operations for cart entries.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListForUser loads the user's cart in insertion order with product, offer,
// and color.
func (r *Repository) ListForUser(ctx context.Context, userID types.ObjectID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Product.Offer").
		Preload("Color").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *Repository) FindForUser(ctx context.Context, userID, itemID types.ObjectID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) FindByProductColor(ctx context.Context, userID, productID, colorID types.ObjectID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND color_id = ?", userID, productID, colorID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) SetQuantity(ctx context.Context, itemID types.ObjectID, quantity int) error {
	return r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

func (r *Repository) Delete(ctx context.Context, userID, itemID types.ObjectID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

// Empty removes every entry of the user's cart.
func (r *Repository) Empty(ctx context.Context, userID types.ObjectID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func newItem(userID, productID, colorID types.ObjectID, quantity int) *models.CartItem {
	return &models.CartItem{UserID: userID, ProductID: productID, ColorID: colorID, Quantity: quantity}
}
