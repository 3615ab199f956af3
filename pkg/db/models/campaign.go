package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// Campaign is an advertiser's creative unit. DestinationURL must be set for
// the campaign to be servable.
type Campaign struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OwnerUserID    uuid.UUID            `gorm:"column:owner_user_id;type:uuid;not null;index"`
	AppID          uuid.UUID            `gorm:"column:app_id;type:uuid;not null;index"`
	Headline       string               `gorm:"column:headline;not null"`
	Body           *string              `gorm:"column:body"`
	CTA            *string              `gorm:"column:cta"`
	DestinationURL *string              `gorm:"column:destination_url"`
	Status         enums.CampaignStatus `gorm:"column:status;type:campaign_status;not null;default:'draft'"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Campaign) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Servable reports whether the campaign can be returned by the selector.
func (c *Campaign) Servable() bool {
	return c != nil && c.DestinationURL != nil && *c.DestinationURL != "" &&
		c.Status != enums.CampaignStatusArchived
}
