package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// SlotPurchase is a claim on a percentage of one WeeklySlot by one campaign.
// Non-canceled percentages for a slot never sum past 100, and a single
// advertiser's never past 40; both are enforced inside the confirm transaction.
type SlotPurchase struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	SlotID          uuid.UUID                `gorm:"column:slot_id;type:uuid;not null;index"`
	CampaignID      uuid.UUID                `gorm:"column:campaign_id;type:uuid;not null;index"`
	UserID          uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	BookingIntentID *uuid.UUID               `gorm:"column:booking_intent_id;type:uuid;index"`
	Percentage      int                      `gorm:"column:percentage;not null"`
	PricePaidCents  int64                    `gorm:"column:price_paid_cents;not null"`
	Status          enums.SlotPurchaseStatus `gorm:"column:status;type:slot_purchase_status;not null;default:'pending'"`
	CanceledAt      *time.Time               `gorm:"column:canceled_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *SlotPurchase) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
