package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// AdEvent is a serving fact (serve, no_fill, impression, click). Impression
// rows are the input to the weekly earnings accrual.
type AdEvent struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Type        enums.AdEventType `gorm:"column:type;type:ad_event_type;not null;index"`
	AppID       uuid.UUID         `gorm:"column:app_id;type:uuid;not null;index"`
	CampaignID  *uuid.UUID        `gorm:"column:campaign_id;type:uuid;index"`
	PurchaseID  *uuid.UUID        `gorm:"column:purchase_id;type:uuid"`
	PlacementID string            `gorm:"column:placement_id;not null"`
	DeviceHash  *string           `gorm:"column:device_hash"`
	WeekStart   time.Time         `gorm:"column:week_start;not null;index"`
	OccurredAt  time.Time         `gorm:"column:occurred_at;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (e *AdEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
