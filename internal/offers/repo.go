package offers

import (
	"context"
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

func (r *Repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *Repository) FindByID(ctx context.Context, id types.ObjectID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *Repository) Save(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Model(&models.Offer{}).
		Where("id = ?", offer.ID).
		Updates(map[string]any{
			"title":         offer.Title,
			"english_title": offer.EnglishTitle,
			"description":   offer.Description,
			"percent":       offer.Percent,
			"expires_at":    offer.ExpiresAt,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *Repository) Delete(ctx context.Context, ids ...types.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Offer{})
	return res.RowsAffected, res.Error
}

// List returns every offer, latest expiry first.
func (r *Repository) List(ctx context.Context) ([]models.Offer, error) {
	var rows []models.Offer
	err := r.db.WithContext(ctx).Order("expires_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

// ExpiredIDs lists offers whose expiry is at or before cutoff.
func (r *Repository) ExpiredIDs(ctx context.Context, cutoff time.Time) ([]types.ObjectID, error) {
	var ids []types.ObjectID
	err := r.db.WithContext(ctx).Model(&models.Offer{}).Where("expires_at <= ?", cutoff).Pluck("id", &ids).Error
	return ids, err
}
