package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WeeklyAccrual marks a week whose earnings aggregation has run. The unique
// week_start index makes the accrual job idempotent.
type WeeklyAccrual struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WeekStart        time.Time `gorm:"column:week_start;not null;uniqueIndex"`
	RevenuePoolCents int64     `gorm:"column:revenue_pool_cents;not null"`
	Impressions      int64     `gorm:"column:impressions;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (a *WeeklyAccrual) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
