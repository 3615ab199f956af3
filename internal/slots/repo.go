package slots

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// Repository manages persistence for weekly slots and their purchases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByWeekStart(ctx context.Context, weekStart time.Time) (*models.WeeklySlot, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.WeeklySlot, error)
	Create(ctx context.Context, slot *models.WeeklySlot) error
	PurchasedPercentage(ctx context.Context, slotID uuid.UUID) (int, error)
	AdvertiserPercentage(ctx context.Context, slotID, userID uuid.UUID) (int, error)
	ActivePurchases(ctx context.Context, slotID uuid.UUID) ([]models.SlotPurchase, error)
	CreatePurchase(ctx context.Context, purchase *models.SlotPurchase) error
	CancelPurchase(ctx context.Context, purchaseID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a slots repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByWeekStart(ctx context.Context, weekStart time.Time) (*models.WeeklySlot, error) {
	var slot models.WeeklySlot
	err := r.db.WithContext(ctx).
		Where("week_start = ?", weekStart.UTC()).
		First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.WeeklySlot, error) {
	var slot models.WeeklySlot
	err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *repository) Create(ctx context.Context, slot *models.WeeklySlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *repository) PurchasedPercentage(ctx context.Context, slotID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.SlotPurchase{}).
		Where("slot_id = ? AND status IN ?", slotID, activeStatuses()).
		Select("COALESCE(SUM(percentage), 0)").
		Scan(&total).Error
	return int(total), err
}

func (r *repository) AdvertiserPercentage(ctx context.Context, slotID, userID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.SlotPurchase{}).
		Where("slot_id = ? AND user_id = ? AND status IN ?", slotID, userID, activeStatuses()).
		Select("COALESCE(SUM(percentage), 0)").
		Scan(&total).Error
	return int(total), err
}

func (r *repository) ActivePurchases(ctx context.Context, slotID uuid.UUID) ([]models.SlotPurchase, error) {
	var purchases []models.SlotPurchase
	err := r.db.WithContext(ctx).
		Where("slot_id = ? AND status IN ?", slotID, activeStatuses()).
		Order("created_at ASC").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repository) CreatePurchase(ctx context.Context, purchase *models.SlotPurchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) CancelPurchase(ctx context.Context, purchaseID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SlotPurchase{}).
		Where("id = ?", purchaseID).
		Updates(map[string]any{
			"status":      enums.SlotPurchaseStatusCanceled,
			"canceled_at": at.UTC(),
		}).Error
}

func activeStatuses() []enums.SlotPurchaseStatus {
	return []enums.SlotPurchaseStatus{
		enums.SlotPurchaseStatusPending,
		enums.SlotPurchaseStatusConfirmed,
		enums.SlotPurchaseStatusCompleted,
	}
}
