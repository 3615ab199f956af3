package credits

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// Repository manages persistence for ledger entries, holds, and the earnings
// rows conversions consume.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	SumLedger(ctx context.Context, userID uuid.UUID) (int64, error)
	SumHeld(ctx context.Context, userID uuid.UUID) (int64, error)
	CreateEntry(ctx context.Context, entry *models.CreditLedgerEntry) error
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error)
	CreateHold(ctx context.Context, hold *models.CreditHold) error
	// GetHoldByIntentLocked reads the intent's hold under a row lock so
	// concurrent capture/release serialize.
	GetHoldByIntentLocked(ctx context.Context, intentID uuid.UUID) (*models.CreditHold, error)
	UpdateHold(ctx context.Context, holdID uuid.UUID, status enums.CreditHoldStatus, reason *string) error
	// ConvertibleEarnings returns the user's earnings rows with remaining
	// convertible balance, oldest week first.
	ConvertibleEarnings(ctx context.Context, userID uuid.UUID) ([]models.PublisherWeeklyEarning, error)
	AddConvertedCents(ctx context.Context, earningID uuid.UUID, cents int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credits repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) SumLedger(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditLedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) SumHeld(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditHold{}).
		Where("user_id = ? AND status = ?", userID, enums.CreditHoldStatusHeld).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.CreditLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.CreditLedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CreateHold(ctx context.Context, hold *models.CreditHold) error {
	return r.db.WithContext(ctx).Create(hold).Error
}

func (r *repository) GetHoldByIntentLocked(ctx context.Context, intentID uuid.UUID) (*models.CreditHold, error) {
	var hold models.CreditHold
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("booking_intent_id = ?", intentID).
		Order("created_at DESC").
		First(&hold).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *repository) UpdateHold(ctx context.Context, holdID uuid.UUID, status enums.CreditHoldStatus, reason *string) error {
	updates := map[string]any{"status": status}
	if reason != nil {
		updates["release_reason"] = *reason
	}
	return r.db.WithContext(ctx).
		Model(&models.CreditHold{}).
		Where("id = ?", holdID).
		Updates(updates).Error
}

func (r *repository) ConvertibleEarnings(ctx context.Context, userID uuid.UUID) ([]models.PublisherWeeklyEarning, error) {
	var earnings []models.PublisherWeeklyEarning
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ? AND amount_cents > converted_cents", userID, enums.EarningStatusPaid).
		Order("week_start ASC").
		Find(&earnings).Error
	if err != nil {
		return nil, err
	}
	return earnings, nil
}

func (r *repository) AddConvertedCents(ctx context.Context, earningID uuid.UUID, cents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.PublisherWeeklyEarning{}).
		Where("id = ?", earningID).
		Update("converted_cents", gorm.Expr("converted_cents + ?", cents)).Error
}
