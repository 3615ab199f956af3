package campaigns

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// Repository manages persistence for advertiser campaigns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Campaign, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Campaign, error)
	Create(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CampaignStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a campaigns repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).First(&campaign, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Campaign, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var campaigns []models.Campaign
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *repository) Create(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CampaignStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ?", id).
		Update("status", status).Error
}
