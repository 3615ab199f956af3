package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// BookingIntent is the transactional envelope around one purchase attempt.
// Only the booking service and the payment webhook/reconciliation paths
// mutate it.
type BookingIntent struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	CampaignID uuid.UUID `gorm:"column:campaign_id;type:uuid;not null"`
	SlotID     uuid.UUID `gorm:"column:slot_id;type:uuid;not null;index"`

	Percentage       int   `gorm:"column:percentage;not null"`
	QuotedPriceCents int64 `gorm:"column:quoted_price_cents;not null"`
	CreditsApplied   int64 `gorm:"column:credits_applied_cents;not null;default:0"`
	CashDueCents     int64 `gorm:"column:cash_due_cents;not null;default:0"`

	Status        enums.BookingIntentStatus `gorm:"column:status;type:booking_intent_status;not null;default:'created'"`
	FailureReason *string                   `gorm:"column:failure_reason"`

	CheckoutSessionID *string `gorm:"column:checkout_session_id;index"`
	PaymentIntentID   *string `gorm:"column:payment_intent_id"`
	RefundID          *string `gorm:"column:refund_id"`

	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *BookingIntent) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
