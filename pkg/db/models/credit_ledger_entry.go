package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// CreditLedgerEntry is an append-only signed-cents record. Balance is always
// derived by summation, never stored.
type CreditLedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Type        enums.CreditEntryType `gorm:"column:type;type:credit_entry_type;not null"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	SourceRef   *uuid.UUID            `gorm:"column:source_ref;type:uuid"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *CreditLedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
