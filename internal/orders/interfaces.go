package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/enums"
	"github.com/technoshop/technoshop-backend/pkg/pagination"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id types.ObjectID) (*models.Order, error)
	FindForUser(ctx context.Context, userID, id types.ObjectID) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id types.ObjectID, from, to enums.OrderStatus) (bool, error)
}

// ListFilters narrow order listings. Zero values match everything.
type ListFilters struct {
	UserID *types.ObjectID
	Status *enums.OrderStatus
}
