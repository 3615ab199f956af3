package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents the canonical identity entity. Advertisers and publishers
// share the table; the roles are implied by owned campaigns and apps.
type User struct {
	ID    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email string    `gorm:"type:text;not null;uniqueIndex"`
	Name  string    `gorm:"column:name;not null"`

	// BypassCheckout marks internal accounts whose bookings skip the cash leg.
	BypassCheckout bool `gorm:"column:bypass_checkout;not null;default:false"`

	StripeCustomerID *string `gorm:"column:stripe_customer_id"`
	StripeAccountID  *string `gorm:"column:stripe_account_id"`
	PayoutsEnabled   bool    `gorm:"column:payouts_enabled;not null;default:false"`

	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
