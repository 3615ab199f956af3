package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// CreditHold reserves ledger balance against a booking intent. At most one
// non-released hold exists per intent; capture/release serialize on the row.
type CreditHold struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	BookingIntentID uuid.UUID              `gorm:"column:booking_intent_id;type:uuid;not null;index"`
	AmountCents     int64                  `gorm:"column:amount_cents;not null"`
	Status          enums.CreditHoldStatus `gorm:"column:status;type:credit_hold_status;not null;default:'held'"`
	ReleaseReason   *string                `gorm:"column:release_reason"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (h *CreditHold) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
