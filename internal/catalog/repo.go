package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Repository persists brands and categories.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) CreateBrand(ctx context.Context, brand *models.Brand) error {
	return r.db.WithContext(ctx).Create(brand).Error
}

func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *Repository) ListBrands(ctx context.Context) ([]models.Brand, error) {
	var rows []models.Brand
	err := r.db.WithContext(ctx).Order("title ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("title ASC").Find(&rows).Error
	return rows, err
}

// DeleteBrand removes a brand that no product references.
func (r *Repository) DeleteBrand(ctx context.Context, id types.ObjectID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Brand{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

// DeleteCategory removes a category that no product references.
func (r *Repository) DeleteCategory(ctx context.Context, id types.ObjectID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) BrandExists(ctx context.Context, id types.ObjectID) (bool, error) {
	return exists(ctx, r.db, &models.Brand{}, "id = ?", id)
}

func (r *Repository) CategoryExists(ctx context.Context, id types.ObjectID) (bool, error) {
	return exists(ctx, r.db, &models.Category{}, "id = ?", id)
}

// CountCategories returns how many of ids exist.
func (r *Repository) CountCategories(ctx context.Context, ids []types.ObjectID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Category{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

// CountProductsReferencing returns how many products point at the brand or category column.
func (r *Repository) CountProductsReferencing(ctx context.Context, column string, id types.ObjectID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where(column+" = ?", id).Count(&count).Error
	return count, err
}

func exists(ctx context.Context, db *gorm.DB, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where(query, args...).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
