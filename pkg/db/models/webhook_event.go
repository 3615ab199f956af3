package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent dedupes at-least-once webhook deliveries. The (provider,
// event_id) unique index is the idempotency key; Processed flips only after
// the handler succeeds so redeliveries can retry failures.
type WebhookEvent struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Provider  string    `gorm:"column:provider;not null;uniqueIndex:idx_webhook_provider_event,priority:1"`
	EventID   string    `gorm:"column:event_id;not null;uniqueIndex:idx_webhook_provider_event,priority:2"`
	EventType string    `gorm:"column:event_type;not null"`
	Processed bool      `gorm:"column:processed;not null;default:false"`
	LastError *string   `gorm:"column:last_error"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *WebhookEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
