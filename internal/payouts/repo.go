package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// OwnerWeekStats aggregates one publisher-owner's served impressions for a
// week.
type OwnerWeekStats struct {
	UserID        uuid.UUID `gorm:"column:user_id"`
	Impressions   int64     `gorm:"column:impressions"`
	UniqueDevices int64     `gorm:"column:unique_devices"`
}

// Repository manages persistence for earnings accrual and payout batches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// UnaccruedWeeks lists impression weeks before the cutoff that have no
	// accrual marker yet, oldest first.
	UnaccruedWeeks(ctx context.Context, before time.Time) ([]time.Time, error)
	// AggregateWeek rolls the week's impressions up per app owner.
	AggregateWeek(ctx context.Context, weekStart time.Time) ([]OwnerWeekStats, error)
	// WeekRevenueCents sums what advertisers paid for the week's inventory.
	WeekRevenueCents(ctx context.Context, weekStart time.Time) (int64, error)
	CreateAccrual(ctx context.Context, accrual *models.WeeklyAccrual) error
	CreateEarning(ctx context.Context, earning *models.PublisherWeeklyEarning) error
	// PromoteEligible flips accrued earnings past their hold to eligible.
	PromoteEligible(ctx context.Context, now time.Time) (int64, error)
	EligibleEarnings(ctx context.Context) ([]models.PublisherWeeklyEarning, error)
	EarningsByUser(ctx context.Context, userID uuid.UUID) ([]models.PublisherWeeklyEarning, error)
	MarkEarningsPaid(ctx context.Context, ids []uuid.UUID, payoutItemID uuid.UUID) error

	// LatestBatch returns the newest batch for the month regardless of status.
	LatestBatch(ctx context.Context, monthStart time.Time) (*models.PayoutBatch, error)
	CreateBatch(ctx context.Context, batch *models.PayoutBatch) error
	CreateItem(ctx context.Context, item *models.PayoutItem) error
	ListItems(ctx context.Context, batchID uuid.UUID) ([]models.PayoutItem, error)
	FinalizeBatch(ctx context.Context, batch *models.PayoutBatch) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payouts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) UnaccruedWeeks(ctx context.Context, before time.Time) ([]time.Time, error) {
	var weeks []time.Time
	err := r.db.WithContext(ctx).
		Table("ad_events").
		Where("ad_events.week_start < ?", before.UTC()).
		Where("NOT EXISTS (SELECT 1 FROM weekly_accruals WHERE weekly_accruals.week_start = ad_events.week_start)").
		Distinct().
		Order("week_start ASC").
		Pluck("ad_events.week_start", &weeks).Error
	if err != nil {
		return nil, err
	}
	return weeks, nil
}

func (r *repository) AggregateWeek(ctx context.Context, weekStart time.Time) ([]OwnerWeekStats, error) {
	var stats []OwnerWeekStats
	err := r.db.WithContext(ctx).
		Table("ad_events").
		Select("publisher_apps.owner_user_id AS user_id, COUNT(*) AS impressions, COUNT(DISTINCT ad_events.device_hash) AS unique_devices").
		Joins("JOIN publisher_apps ON publisher_apps.id = ad_events.app_id").
		Where("ad_events.type = ? AND ad_events.week_start = ?", enums.AdEventTypeImpression, weekStart.UTC()).
		Group("publisher_apps.owner_user_id").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *repository) WeekRevenueCents(ctx context.Context, weekStart time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Table("slot_purchases").
		Joins("JOIN weekly_slots ON weekly_slots.id = slot_purchases.slot_id").
		Where("weekly_slots.week_start = ?", weekStart.UTC()).
		Where("slot_purchases.status IN ?", []enums.SlotPurchaseStatus{
			enums.SlotPurchaseStatusConfirmed,
			enums.SlotPurchaseStatusCompleted,
		}).
		Select("COALESCE(SUM(slot_purchases.price_paid_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repository) CreateAccrual(ctx context.Context, accrual *models.WeeklyAccrual) error {
	return r.db.WithContext(ctx).Create(accrual).Error
}

func (r *repository) CreateEarning(ctx context.Context, earning *models.PublisherWeeklyEarning) error {
	return r.db.WithContext(ctx).Create(earning).Error
}

func (r *repository) PromoteEligible(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PublisherWeeklyEarning{}).
		Where("status = ? AND hold_until <= ?", enums.EarningStatusAccrued, now.UTC()).
		Update("status", enums.EarningStatusEligible)
	return result.RowsAffected, result.Error
}

func (r *repository) EligibleEarnings(ctx context.Context) ([]models.PublisherWeeklyEarning, error) {
	var earnings []models.PublisherWeeklyEarning
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.EarningStatusEligible).
		Order("week_start ASC").
		Find(&earnings).Error
	if err != nil {
		return nil, err
	}
	return earnings, nil
}

func (r *repository) EarningsByUser(ctx context.Context, userID uuid.UUID) ([]models.PublisherWeeklyEarning, error) {
	var earnings []models.PublisherWeeklyEarning
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("week_start DESC").
		Find(&earnings).Error
	if err != nil {
		return nil, err
	}
	return earnings, nil
}

func (r *repository) MarkEarningsPaid(ctx context.Context, ids []uuid.UUID, payoutItemID uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.PublisherWeeklyEarning{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":              enums.EarningStatusPaid,
			"paid_payout_item_id": payoutItemID,
		}).Error
}

func (r *repository) LatestBatch(ctx context.Context, monthStart time.Time) (*models.PayoutBatch, error) {
	var batch models.PayoutBatch
	err := r.db.WithContext(ctx).
		Where("month_start = ?", monthStart.UTC()).
		Order("created_at DESC").
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) CreateBatch(ctx context.Context, batch *models.PayoutBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.PayoutItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) ListItems(ctx context.Context, batchID uuid.UUID) ([]models.PayoutItem, error) {
	var items []models.PayoutItem
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FinalizeBatch(ctx context.Context, batch *models.PayoutBatch) error {
	return r.db.WithContext(ctx).
		Model(&models.PayoutBatch{}).
		Where("id = ?", batch.ID).
		Updates(map[string]any{
			"status":           batch.Status,
			"total_paid_cents": batch.TotalPaidCents,
			"paid_count":       batch.PaidCount,
			"skipped_count":    batch.SkippedCount,
			"failed_count":     batch.FailedCount,
			"completed_at":     batch.CompletedAt,
		}).Error
}
