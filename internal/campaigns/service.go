package campaigns

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
	apperrors "github.com/admeshlabs/admesh-backend/pkg/errors"
)

// Service manages advertiser campaigns.
type Service interface {
	Create(ctx context.Context, input CreateCampaignInput) (*models.Campaign, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	// GetOwned returns the campaign only when it belongs to ownerID.
	GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Campaign, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Campaign, error)
	SetStatus(ctx context.Context, id, ownerID uuid.UUID, status enums.CampaignStatus) error
	Repo() Repository
}

// CreateCampaignInput captures the creative an advertiser submits.
type CreateCampaignInput struct {
	OwnerUserID    uuid.UUID `json:"owner_user_id"`
	AppID          uuid.UUID `json:"app_id" validate:"required"`
	Headline       string    `json:"headline" validate:"required,min=1,max=140"`
	Body           *string   `json:"body,omitempty" validate:"omitempty,max=500"`
	CTA            *string   `json:"cta,omitempty" validate:"omitempty,max=40"`
	DestinationURL *string   `json:"destination_url,omitempty" validate:"omitempty,url"`
}

type service struct {
	repo Repository
}

// NewService wires a campaigns service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("campaigns repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Repo() Repository {
	return s.repo
}

func (s *service) Create(ctx context.Context, input CreateCampaignInput) (*models.Campaign, error) {
	if input.OwnerUserID == uuid.Nil {
		return nil, fmt.Errorf("owner user id is required")
	}
	if input.AppID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "app id is required")
	}
	if strings.TrimSpace(input.Headline) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "headline is required")
	}

	campaign := &models.Campaign{
		OwnerUserID:    input.OwnerUserID,
		AppID:          input.AppID,
		Headline:       strings.TrimSpace(input.Headline),
		Body:           input.Body,
		CTA:            input.CTA,
		DestinationURL: input.DestinationURL,
		Status:         enums.CampaignStatusDraft,
	}
	if campaign.DestinationURL != nil && *campaign.DestinationURL != "" {
		campaign.Status = enums.CampaignStatusActive
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("campaign id is required")
	}
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "campaign not found")
	}
	return campaign, nil
}

func (s *service) GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.OwnerUserID != ownerID {
		return nil, apperrors.New(apperrors.CodeForbidden, "campaign belongs to another account")
	}
	return campaign, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Campaign, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("owner user id is required")
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *service) SetStatus(ctx context.Context, id, ownerID uuid.UUID, status enums.CampaignStatus) error {
	if !status.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid campaign status %q", status))
	}
	if _, err := s.GetOwned(ctx, id, ownerID); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, id, status)
}
