package adserve

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// Repository manages persistence for the serving path: eligible purchases,
// sticky assignments and serving events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// EligiblePurchases returns non-canceled purchases for the given serving
	// week whose campaign is servable and not owned by the requesting app.
	EligiblePurchases(ctx context.Context, weekStart time.Time, excludeAppID uuid.UUID) ([]models.SlotPurchase, error)
	// LatestPurchase returns the most recent purchase in the given statuses
	// across any week, excluding the requesting app's own campaigns.
	LatestPurchase(ctx context.Context, excludeAppID uuid.UUID, statuses []enums.SlotPurchaseStatus) (*models.SlotPurchase, error)
	GetView(ctx context.Context, deviceHash string, appID uuid.UUID, placementID string, weekStart time.Time) (*models.UniqueAdView, error)
	CreateView(ctx context.Context, view *models.UniqueAdView) error
	UpdateViewCampaign(ctx context.Context, id, campaignID uuid.UUID, purchaseID *uuid.UUID, at time.Time) error
	TouchView(ctx context.Context, id uuid.UUID, at time.Time) error
	InsertEvent(ctx context.Context, event *models.AdEvent) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a serving repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func servableCampaignScope(db *gorm.DB, excludeAppID uuid.UUID) *gorm.DB {
	return db.
		Joins("JOIN campaigns ON campaigns.id = slot_purchases.campaign_id").
		Where("campaigns.app_id <> ?", excludeAppID).
		Where("campaigns.destination_url IS NOT NULL AND campaigns.destination_url <> ''").
		Where("campaigns.status <> ?", enums.CampaignStatusArchived)
}

func (r *repository) EligiblePurchases(ctx context.Context, weekStart time.Time, excludeAppID uuid.UUID) ([]models.SlotPurchase, error) {
	var purchases []models.SlotPurchase
	q := r.db.WithContext(ctx).
		Model(&models.SlotPurchase{}).
		Joins("JOIN weekly_slots ON weekly_slots.id = slot_purchases.slot_id").
		Where("weekly_slots.week_start = ?", weekStart.UTC()).
		Where("slot_purchases.status <> ?", enums.SlotPurchaseStatusCanceled)
	q = servableCampaignScope(q, excludeAppID)
	if err := q.Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repository) LatestPurchase(ctx context.Context, excludeAppID uuid.UUID, statuses []enums.SlotPurchaseStatus) (*models.SlotPurchase, error) {
	var purchase models.SlotPurchase
	q := r.db.WithContext(ctx).
		Model(&models.SlotPurchase{}).
		Where("slot_purchases.status IN ?", statuses)
	q = servableCampaignScope(q, excludeAppID)
	err := q.Order("slot_purchases.created_at DESC").First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) GetView(ctx context.Context, deviceHash string, appID uuid.UUID, placementID string, weekStart time.Time) (*models.UniqueAdView, error) {
	var view models.UniqueAdView
	err := r.db.WithContext(ctx).
		Where("device_hash = ? AND app_id = ? AND placement_id = ? AND week_start = ?",
			deviceHash, appID, placementID, weekStart.UTC()).
		First(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *repository) CreateView(ctx context.Context, view *models.UniqueAdView) error {
	return r.db.WithContext(ctx).Create(view).Error
}

func (r *repository) UpdateViewCampaign(ctx context.Context, id, campaignID uuid.UUID, purchaseID *uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.UniqueAdView{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"campaign_id":  campaignID,
			"purchase_id":  purchaseID,
			"last_seen_at": at.UTC(),
		}).Error
}

func (r *repository) TouchView(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.UniqueAdView{}).
		Where("id = ?", id).
		Update("last_seen_at", at.UTC()).Error
}

func (r *repository) InsertEvent(ctx context.Context, event *models.AdEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
