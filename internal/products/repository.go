package product

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/pagination"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Repository wires together all product-related persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) detailed(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Brand").
		Preload("Category").
		Preload("Offer").
		Preload("Colors", func(db *gorm.DB) *gorm.DB { return db.Order("price ASC").Order("id ASC") })
}

// Create inserts the product together with its colors.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// FindByID loads the product with brand, category, offer and colors.
func (r *Repository) FindByID(ctx context.Context, id types.ObjectID) (*models.Product, error) {
	var product models.Product
	if err := r.detailed(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads detailed products keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []types.ObjectID) (map[types.ObjectID]*models.Product, error) {
	out := make(map[types.ObjectID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.detailed(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// UpdateFields writes the scalar product columns.
func (r *Repository) UpdateFields(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"title":       product.Title,
			"warranty":    product.Warranty,
			"covers":      product.Covers,
			"brand_id":    product.BrandID,
			"category_id": product.CategoryID,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// ReplaceColors upserts colors and deletes the ones not listed. Cart entries
// pointing at removed colors are dropped with them.
func (r *Repository) ReplaceColors(ctx context.Context, productID types.ObjectID, colors []models.Color) error {
	keep := make([]types.ObjectID, 0, len(colors))
	for i := range colors {
		colors[i].ProductID = productID
		if colors[i].ID.IsZero() {
			colors[i].ID = types.NewObjectID()
		}
		keep = append(keep, colors[i].ID)
	}

	stale := r.db.WithContext(ctx).Model(&models.Color{}).Select("id").Where("product_id = ?", productID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := r.db.WithContext(ctx).Where("color_id IN (?)", stale).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	del := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if len(keep) > 0 {
		del = del.Where("id NOT IN ?", keep)
	}
	if err := del.Delete(&models.Color{}).Error; err != nil {
		return err
	}
	if len(colors) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "code", "price", "inventory"}),
	}).Create(&colors).Error
}

// ColorIDs returns the existing color ids of a product.
func (r *Repository) ColorIDs(ctx context.Context, productID types.ObjectID) ([]types.ObjectID, error) {
	var ids []types.ObjectID
	err := r.db.WithContext(ctx).Model(&models.Color{}).Where("product_id = ?", productID).Pluck("id", &ids).Error
	return ids, err
}

// Delete removes the product, its colors and any cart entries for it.
func (r *Repository) Delete(ctx context.Context, id types.ObjectID) (bool, error) {
	if err := r.db.WithContext(ctx).Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
		return false, err
	}
	if err := r.db.WithContext(ctx).Where("product_id = ?", id).Delete(&models.Color{}).Error; err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

// List returns one buffered page of products matching filters.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Product, error) {
	query := r.detailed(ctx).Model(&models.Product{})
	if filters.Category != nil {
		query = query.Where("category_id = ?", *filters.Category)
	}
	if filters.Brand != nil {
		query = query.Where("brand_id = ?", *filters.Brand)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	query, err := pagination.Apply(query, params)
	if err != nil {
		return nil, err
	}
	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListWithActiveOffer returns one buffered page of products whose offer is
// still running at now.
func (r *Repository) ListWithActiveOffer(ctx context.Context, now time.Time, params pagination.Params) ([]models.Product, error) {
	active := r.db.WithContext(ctx).Model(&models.Offer{}).Select("id").Where("expires_at > ?", now)
	query := r.detailed(ctx).Model(&models.Product{}).Where("offer_id IN (?)", active)
	query, err := pagination.Apply(query, params)
	if err != nil {
		return nil, err
	}
	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AttachOffer points every product of categories at offerID and returns the
// affected product ids.
func (r *Repository) AttachOffer(ctx context.Context, offerID types.ObjectID, categories []types.ObjectID) ([]types.ObjectID, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	var ids []types.ObjectID
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("category_id IN ?", categories).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"offer_id": offerID, "updated_at": time.Now().UTC()}).Error
	return ids, err
}

// DetachOffer clears offerIDs from every product and returns the affected
// product ids.
func (r *Repository) DetachOffer(ctx context.Context, offerIDs ...types.ObjectID) ([]types.ObjectID, error) {
	if len(offerIDs) == 0 {
		return nil, nil
	}
	var ids []types.ObjectID
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("offer_id IN ?", offerIDs).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"offer_id": nil, "updated_at": time.Now().UTC()}).Error
	return ids, err
}

// ProductIDsWithOffer lists the products currently carrying offerID.
func (r *Repository) ProductIDsWithOffer(ctx context.Context, offerID types.ObjectID) ([]types.ObjectID, error) {
	var ids []types.ObjectID
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("offer_id = ?", offerID).Pluck("id", &ids).Error
	return ids, err
}

// FindColorForUpdate loads a color row, locking it on databases that support
// row locks.
func (r *Repository) FindColorForUpdate(ctx context.Context, productID, colorID types.ObjectID) (*models.Color, error) {
	var color models.Color
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.Where("id = ? AND product_id = ?", colorID, productID).First(&color).Error; err != nil {
		return nil, err
	}
	return &color, nil
}

// DecrementInventory takes qty from the color when enough stock remains and
// reports whether it did.
func (r *Repository) DecrementInventory(ctx context.Context, colorID types.ObjectID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Color{}).
		Where("id = ? AND inventory >= ?", colorID, qty).
		UpdateColumn("inventory", gorm.Expr("inventory - ?", qty))
	return res.RowsAffected == 1, res.Error
}

// RestockInventory returns qty units to the color.
func (r *Repository) RestockInventory(ctx context.Context, colorID types.ObjectID, qty int) error {
	return r.db.WithContext(ctx).Model(&models.Color{}).
		Where("id = ?", colorID).
		UpdateColumn("inventory", gorm.Expr("inventory + ?", qty)).Error
}
