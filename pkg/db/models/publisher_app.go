package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PublisherApp is an app integrated with the serving SDK. The display fields
// double as the promoted-app metadata when one of its campaigns wins a slot.
type PublisherApp struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;not null"`
	BundleID    *string   `gorm:"column:bundle_id;uniqueIndex"`
	Subtitle    *string   `gorm:"column:subtitle"`
	IconURL     *string   `gorm:"column:icon_url"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *PublisherApp) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
