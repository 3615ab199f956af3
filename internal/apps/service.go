package apps

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/pkg/auth"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	apperrors "github.com/admeshlabs/admesh-backend/pkg/errors"
)

// Service manages publisher app registration and SDK token lifecycle.
type Service interface {
	Register(ctx context.Context, input RegisterAppInput) (*models.PublisherApp, string, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PublisherApp, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.PublisherApp, error)
	// Authenticate resolves an SDK token (or bare app id during migration)
	// to an active app.
	Authenticate(ctx context.Context, credential string) (*models.PublisherApp, error)
	Repo() Repository
}

// RegisterAppInput captures what a publisher submits when onboarding an app.
type RegisterAppInput struct {
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	Name        string    `json:"name" validate:"required,min=1,max=120"`
	BundleID    *string   `json:"bundle_id,omitempty"`
	Subtitle    *string   `json:"subtitle,omitempty"`
	IconURL     *string   `json:"icon_url,omitempty"`
}

type service struct {
	repo Repository
	clk  clock.Clock
}

// NewService wires an apps service with the provided repository.
func NewService(repo Repository, clk clock.Clock) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("apps repository required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock required")
	}
	return &service{repo: repo, clk: clk}, nil
}

func (s *service) Repo() Repository {
	return s.repo
}

func (s *service) Register(ctx context.Context, input RegisterAppInput) (*models.PublisherApp, string, error) {
	if input.OwnerUserID == uuid.Nil {
		return nil, "", fmt.Errorf("owner user id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, "", apperrors.New(apperrors.CodeValidation, "app name is required")
	}

	app := &models.PublisherApp{
		OwnerUserID: input.OwnerUserID,
		Name:        strings.TrimSpace(input.Name),
		BundleID:    input.BundleID,
		Subtitle:    input.Subtitle,
		IconURL:     input.IconURL,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, "", err
	}

	raw, hash, err := auth.GenerateAppToken()
	if err != nil {
		return nil, "", err
	}
	token := &models.AppToken{
		AppID:     app.ID,
		TokenHash: hash,
	}
	if err := s.repo.CreateToken(ctx, token); err != nil {
		return nil, "", err
	}

	return app, raw, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PublisherApp, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("app id is required")
	}
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "app not found")
	}
	return app, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.PublisherApp, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("owner user id is required")
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *service) Authenticate(ctx context.Context, credential string) (*models.PublisherApp, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "app credential required")
	}

	// Legacy SDK builds send the raw app id instead of a minted token.
	if appID, err := uuid.Parse(credential); err == nil {
		return s.activeApp(ctx, appID)
	}

	token, err := s.repo.GetTokenByHash(ctx, auth.HashAppToken(credential))
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "unknown app token")
	}
	if err := s.repo.TouchToken(ctx, token.ID, s.clk.Now()); err != nil {
		return nil, err
	}
	return s.activeApp(ctx, token.AppID)
}

func (s *service) activeApp(ctx context.Context, appID uuid.UUID) (*models.PublisherApp, error) {
	app, err := s.repo.GetByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil || !app.IsActive {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "app is not active")
	}
	return app, nil
}
