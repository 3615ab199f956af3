package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WeeklySlot is one calendar week of sellable network inventory. WeekStart is
// always a Sunday at 00:00 UTC. Rows are created lazily on first lookup.
type WeeklySlot struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WeekStart           time.Time `gorm:"column:week_start;not null;uniqueIndex"`
	BasePriceCents      int64     `gorm:"column:base_price_cents;not null"`
	TotalUsersEstimate  int64     `gorm:"column:total_users_estimate;not null;default:0"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *WeeklySlot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
