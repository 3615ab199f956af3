package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UniqueAdView pins a device to one campaign for a whole serving week. The row
// expires implicitly when the week-start component of the key rolls over.
type UniqueAdView struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	DeviceHash   string     `gorm:"column:device_hash;not null;uniqueIndex:idx_ad_view_key,priority:1"`
	AppID        uuid.UUID  `gorm:"column:app_id;type:uuid;not null;uniqueIndex:idx_ad_view_key,priority:2"`
	PlacementID  string     `gorm:"column:placement_id;not null;uniqueIndex:idx_ad_view_key,priority:3"`
	WeekStart    time.Time  `gorm:"column:week_start;not null;uniqueIndex:idx_ad_view_key,priority:4"`
	CampaignID   uuid.UUID  `gorm:"column:campaign_id;type:uuid;not null"`
	PurchaseID   *uuid.UUID `gorm:"column:purchase_id;type:uuid"`
	LastSeenAt   time.Time  `gorm:"column:last_seen_at;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (v *UniqueAdView) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
