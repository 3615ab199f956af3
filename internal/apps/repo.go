package apps

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
)

// Repository manages persistence for publisher apps and their SDK tokens.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, id uuid.UUID) (*models.PublisherApp, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.PublisherApp, error)
	Create(ctx context.Context, app *models.PublisherApp) error
	CreateToken(ctx context.Context, token *models.AppToken) error
	GetTokenByHash(ctx context.Context, hash string) (*models.AppToken, error)
	TouchToken(ctx context.Context, tokenID uuid.UUID, at time.Time) error
	RevokeToken(ctx context.Context, tokenID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an apps repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.PublisherApp, error) {
	var app models.PublisherApp
	err := r.db.WithContext(ctx).First(&app, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.PublisherApp, error) {
	var apps []models.PublisherApp
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("created_at ASC").
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *repository) Create(ctx context.Context, app *models.PublisherApp) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *repository) CreateToken(ctx context.Context, token *models.AppToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *repository) GetTokenByHash(ctx context.Context, hash string) (*models.AppToken, error) {
	var token models.AppToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *repository) TouchToken(ctx context.Context, tokenID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.AppToken{}).
		Where("id = ?", tokenID).
		Update("last_used_at", at.UTC()).Error
}

func (r *repository) RevokeToken(ctx context.Context, tokenID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.AppToken{}).
		Where("id = ?", tokenID).
		Update("revoked_at", at.UTC()).Error
}
