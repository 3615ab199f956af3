package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppToken stores the SHA-256 hash of an SDK token. The raw token is shown to
// the publisher once and never persisted.
type AppToken struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	AppID      uuid.UUID  `gorm:"column:app_id;type:uuid;not null;index"`
	TokenHash  string     `gorm:"column:token_hash;not null;uniqueIndex"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (t *AppToken) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
