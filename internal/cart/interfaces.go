package cart

import (
	"context"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	ListForUser(ctx context.Context, userID types.ObjectID) ([]models.CartItem, error)
	FindForUser(ctx context.Context, userID, itemID types.ObjectID) (*models.CartItem, error)
	FindByProductColor(ctx context.Context, userID, productID, colorID types.ObjectID) (*models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	SetQuantity(ctx context.Context, itemID types.ObjectID, quantity int) error
	Delete(ctx context.Context, userID, itemID types.ObjectID) (bool, error)
	Empty(ctx context.Context, userID types.ObjectID) (int64, error)
}
