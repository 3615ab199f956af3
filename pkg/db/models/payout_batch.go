package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// PayoutBatch groups one calendar month's publisher transfers. Re-running the
// monthly job finds the existing non-completed batch and resumes it.
type PayoutBatch struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	MonthStart      time.Time               `gorm:"column:month_start;not null;index"`
	Status          enums.PayoutBatchStatus `gorm:"column:status;type:payout_batch_status;not null;default:'pending'"`
	TotalPaidCents  int64                   `gorm:"column:total_paid_cents;not null;default:0"`
	PaidCount       int                     `gorm:"column:paid_count;not null;default:0"`
	SkippedCount    int                     `gorm:"column:skipped_count;not null;default:0"`
	FailedCount     int                     `gorm:"column:failed_count;not null;default:0"`
	CompletedAt     *time.Time              `gorm:"column:completed_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *PayoutBatch) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// PayoutItem is one publisher-user's outcome inside a batch.
type PayoutItem struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	BatchID     uuid.UUID              `gorm:"column:batch_id;type:uuid;not null;index"`
	UserID      uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	AmountCents int64                  `gorm:"column:amount_cents;not null"`
	Status      enums.PayoutItemStatus `gorm:"column:status;type:payout_item_status;not null"`
	Reason      *string                `gorm:"column:reason"`
	TransferID  *string                `gorm:"column:transfer_id"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (i *PayoutItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
