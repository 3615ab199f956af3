package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

// Repository manages persistence for booking intents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.BookingIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BookingIntent, error)
	// GetByIDLocked reads the intent under a row lock so concurrent confirm
	// attempts serialize on the intent itself.
	GetByIDLocked(ctx context.Context, id uuid.UUID) (*models.BookingIntent, error)
	GetByCheckoutSession(ctx context.Context, sessionID string) (*models.BookingIntent, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.BookingIntent, error)
	// ListStale returns non-terminal intents not updated since the cutoff.
	ListStale(ctx context.Context, statuses []enums.BookingIntentStatus, before time.Time) ([]models.BookingIntent, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.BookingIntentStatus, failureReason *string) error
	SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error
	SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) error
	SetRefund(ctx context.Context, id uuid.UUID, refundID string) error
	MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) error
	// LockSlot takes the per-week row lock that serializes capacity checks.
	LockSlot(ctx context.Context, slotID uuid.UUID) (*models.WeeklySlot, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a booking repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.BookingIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.BookingIntent, error) {
	var intent models.BookingIntent
	err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) GetByIDLocked(ctx context.Context, id uuid.UUID) (*models.BookingIntent, error) {
	var intent models.BookingIntent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&intent, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) GetByCheckoutSession(ctx context.Context, sessionID string) (*models.BookingIntent, error) {
	var intent models.BookingIntent
	err := r.db.WithContext(ctx).
		Where("checkout_session_id = ?", sessionID).
		First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.BookingIntent, error) {
	var intents []models.BookingIntent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repository) ListStale(ctx context.Context, statuses []enums.BookingIntentStatus, before time.Time) ([]models.BookingIntent, error) {
	var intents []models.BookingIntent
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, before.UTC()).
		Order("updated_at ASC").
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.BookingIntentStatus, failureReason *string) error {
	updates := map[string]any{"status": status}
	if failureReason != nil {
		updates["failure_reason"] = *failureReason
	}
	return r.db.WithContext(ctx).
		Model(&models.BookingIntent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.BookingIntent{}).
		Where("id = ?", id).
		Update("checkout_session_id", sessionID).Error
}

func (r *repository) SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.BookingIntent{}).
		Where("id = ?", id).
		Update("payment_intent_id", paymentIntentID).Error
}

func (r *repository) SetRefund(ctx context.Context, id uuid.UUID, refundID string) error {
	return r.db.WithContext(ctx).
		Model(&models.BookingIntent{}).
		Where("id = ?", id).
		Update("refund_id", refundID).Error
}

func (r *repository) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.BookingIntent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.BookingIntentStatusConfirmed,
			"confirmed_at": at.UTC(),
		}).Error
}

func (r *repository) LockSlot(ctx context.Context, slotID uuid.UUID) (*models.WeeklySlot, error) {
	var slot models.WeeklySlot
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&slot, "id = ?", slotID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}
