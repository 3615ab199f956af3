package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// PublisherWeeklyEarning is one publisher-user's accrued revenue for one week.
// ConvertedCents tracks how much has already been turned into ad credits;
// payouts only move the remainder.
type PublisherWeeklyEarning struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_earning_user_week,priority:1"`
	WeekStart        time.Time           `gorm:"column:week_start;not null;uniqueIndex:idx_earning_user_week,priority:2"`
	Impressions      int64               `gorm:"column:impressions;not null;default:0"`
	UniqueDevices    int64               `gorm:"column:unique_devices;not null;default:0"`
	AmountCents      int64               `gorm:"column:amount_cents;not null"`
	ConvertedCents   int64               `gorm:"column:converted_cents;not null;default:0"`
	Status           enums.EarningStatus `gorm:"column:status;type:earning_status;not null;default:'accrued'"`
	HoldUntil        time.Time           `gorm:"column:hold_until;not null"`
	PaidPayoutItemID *uuid.UUID          `gorm:"column:paid_payout_item_id;type:uuid"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *PublisherWeeklyEarning) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ConvertibleCents returns the remaining balance a conversion may consume.
func (e *PublisherWeeklyEarning) ConvertibleCents() int64 {
	remaining := e.AmountCents - e.ConvertedCents
	if remaining < 0 {
		return 0
	}
	return remaining
}
