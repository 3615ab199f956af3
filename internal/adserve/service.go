package adserve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/admeshlabs/admesh-backend/internal/apps"
	"github.com/admeshlabs/admesh-backend/internal/campaigns"
	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/pkg/config"
	"github.com/admeshlabs/admesh-backend/pkg/db"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
	apperrors "github.com/admeshlabs/admesh-backend/pkg/errors"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
	"github.com/admeshlabs/admesh-backend/pkg/metrics"
)

const fallbackAppName = "Sponsored App"

// EventPublisher fans serving events out to the analytics pipeline.
// Publishing is best effort; serving never fails on a publish error.
type EventPublisher interface {
	PublishAdEvent(ctx context.Context, event *models.AdEvent) error
}

// ServeInput is one SDK ad request.
type ServeInput struct {
	AppID       uuid.UUID
	PlacementID string
	DeviceHash  string
	NeverNoFill bool
}

// ServedAd is the payload returned to the SDK for a filled request.
type ServedAd struct {
	AdID           uuid.UUID `json:"ad_id"`
	CampaignID     uuid.UUID `json:"campaign_id"`
	Headline       string    `json:"headline"`
	Body           string    `json:"body,omitempty"`
	CTA            string    `json:"cta,omitempty"`
	AppName        string    `json:"app_name"`
	AppSubtitle    string    `json:"app_subtitle,omitempty"`
	AppIconURL     string    `json:"app_icon_url,omitempty"`
	ClickURL       string    `json:"click_url"`
	Nonce          string    `json:"nonce"`
	ExpiresAt      time.Time `json:"expires_at"`
	destinationURL string
	purchaseID     *uuid.UUID
}

// EventInput records an SDK-reported outcome (impression, click, custom).
type EventInput struct {
	AppID       uuid.UUID
	CampaignID  *uuid.UUID
	PurchaseID  *uuid.UUID
	PlacementID string
	DeviceHash  string
}

// Service selects ads for publisher apps and records serving facts.
type Service interface {
	// Serve runs sticky lookup + weighted selection. A nil ad with a nil
	// error means no-fill.
	Serve(ctx context.Context, input ServeInput) (*ServedAd, error)
	// RecordImpression stores an impression event.
	RecordImpression(ctx context.Context, input EventInput) error
	// RecordEvent stores an arbitrary SDK event by type name.
	RecordEvent(ctx context.Context, eventType string, input EventInput) error
	// ResolveClick verifies the click token and returns the destination URL,
	// recording the click.
	ResolveClick(ctx context.Context, adID uuid.UUID, placementID, expiry, nonce, deviceHash string) (string, error)
	Repo() Repository
}

type service struct {
	repo      Repository
	campaigns campaigns.Repository
	apps      apps.Repository
	clk       clock.Clock
	cfg       config.ServingConfig
	metrics   *metrics.ServingMetrics
	publisher EventPublisher
	logg      *logger.Logger

	// rngMu guards rng: *rand.Rand is not safe for concurrent use and every
	// serve request draws from the shared source.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// ServiceDeps bundles the collaborators the serving service needs. Rand may
// be nil, in which case a time-seeded source is used.
type ServiceDeps struct {
	Repo      Repository
	Campaigns campaigns.Repository
	Apps      apps.Repository
	Clock     clock.Clock
	Config    config.ServingConfig
	Metrics   *metrics.ServingMetrics
	Publisher EventPublisher
	Logger    *logger.Logger
	Rand      *rand.Rand
}

// NewService wires a serving service with the provided collaborators.
func NewService(deps ServiceDeps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("serving repository required")
	case deps.Campaigns == nil:
		return nil, fmt.Errorf("campaigns repository required")
	case deps.Apps == nil:
		return nil, fmt.Errorf("apps repository required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock required")
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	cfg := deps.Config
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = 6 * time.Hour
	}
	return &service{
		repo:      deps.Repo,
		campaigns: deps.Campaigns,
		apps:      deps.Apps,
		clk:       deps.Clock,
		cfg:       cfg,
		metrics:   deps.Metrics,
		publisher: deps.Publisher,
		logg:      deps.Logger,
		rng:       rng,
	}, nil
}

func (s *service) Repo() Repository {
	return s.repo
}

func (s *service) drawFloat() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

func (s *service) drawIntn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

// ClickNonce computes the verification token bound to one served ad. The
// expiry string must carry no sub-second precision.
func ClickNonce(adID uuid.UUID, placementID, expiry string) string {
	sum := sha256.Sum256([]byte(adID.String() + ":" + placementID + ":" + expiry))
	return hex.EncodeToString(sum[:])
}

func (s *service) Serve(ctx context.Context, input ServeInput) (*ServedAd, error) {
	if input.AppID == uuid.Nil || input.PlacementID == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "app_id and placement_id are required")
	}

	now := s.clk.Now()
	weekStart := clock.WeekStart(now)

	if input.DeviceHash != "" {
		ad, err := s.resolveSticky(ctx, input, weekStart, now)
		if err != nil {
			return nil, err
		}
		if ad != nil {
			s.recordServe(ctx, input, ad, weekStart, now)
			return ad, nil
		}
	}

	ad, err := s.selectAd(ctx, input.AppID, input.PlacementID, input.NeverNoFill, weekStart, now)
	if err != nil {
		return nil, err
	}
	if ad == nil {
		s.recordNoFill(ctx, input, weekStart, now)
		return nil, nil
	}

	if input.DeviceHash != "" {
		if sticky := s.upsertView(ctx, input, ad, weekStart, now); sticky != nil {
			ad = sticky
		}
	}
	s.recordServe(ctx, input, ad, weekStart, now)
	return ad, nil
}

// resolveSticky returns the device's pinned ad for the week, or nil when no
// resolvable assignment exists.
func (s *service) resolveSticky(ctx context.Context, input ServeInput, weekStart, now time.Time) (*ServedAd, error) {
	view, err := s.repo.GetView(ctx, input.DeviceHash, input.AppID, input.PlacementID, weekStart)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, nil
	}
	campaign, err := s.campaigns.GetByID(ctx, view.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Servable() {
		return nil, nil
	}
	if err := s.repo.TouchView(ctx, view.ID, now); err != nil {
		return nil, err
	}
	return s.buildAd(ctx, campaign, view.PurchaseID, input.PlacementID, now)
}

// selectAd runs the no-fill draw and the percentage-weighted pick over the
// current serving week's purchases.
func (s *service) selectAd(ctx context.Context, appID uuid.UUID, placementID string, neverNoFill bool, weekStart, now time.Time) (*ServedAd, error) {
	purchases, err := s.repo.EligiblePurchases(ctx, weekStart, appID)
	if err != nil {
		return nil, err
	}

	totalWeight := 0
	for _, p := range purchases {
		totalWeight += p.Percentage
	}

	if !neverNoFill {
		if s.drawFloat() < float64(100-totalWeight)/100 {
			return nil, nil
		}
	}

	var winner *models.SlotPurchase
	switch {
	case len(purchases) == 0:
		// nothing this week
	case totalWeight <= 0:
		winner = &purchases[s.drawIntn(len(purchases))]
	default:
		t := s.drawIntn(totalWeight)
		for i := range purchases {
			t -= purchases[i].Percentage
			if t < 0 {
				winner = &purchases[i]
				break
			}
		}
	}

	if winner == nil {
		if !neverNoFill {
			return nil, nil
		}
		winner, err = s.fallbackPurchase(ctx, appID)
		if err != nil || winner == nil {
			return nil, err
		}
	}

	campaign, err := s.campaigns.GetByID(ctx, winner.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Servable() {
		return nil, nil
	}
	purchaseID := winner.ID
	return s.buildAd(ctx, campaign, &purchaseID, placementID, now)
}

// fallbackPurchase widens the search for neverNoFill callers: most recent
// confirmed purchase across any week, then any non-canceled status.
func (s *service) fallbackPurchase(ctx context.Context, appID uuid.UUID) (*models.SlotPurchase, error) {
	purchase, err := s.repo.LatestPurchase(ctx, appID, []enums.SlotPurchaseStatus{
		enums.SlotPurchaseStatusConfirmed,
	})
	if err != nil || purchase != nil {
		return purchase, err
	}
	return s.repo.LatestPurchase(ctx, appID, []enums.SlotPurchaseStatus{
		enums.SlotPurchaseStatusPending,
		enums.SlotPurchaseStatusConfirmed,
		enums.SlotPurchaseStatusCompleted,
	})
}

func (s *service) upsertView(ctx context.Context, input ServeInput, ad *ServedAd, weekStart, now time.Time) *ServedAd {
	view := &models.UniqueAdView{
		DeviceHash:  input.DeviceHash,
		AppID:       input.AppID,
		PlacementID: input.PlacementID,
		WeekStart:   weekStart,
		CampaignID:  ad.CampaignID,
		PurchaseID:  ad.purchaseID,
		LastSeenAt:  now,
	}
	err := s.repo.CreateView(ctx, view)
	if err == nil {
		return nil
	}
	if !db.IsUniqueViolation(err, "idx_ad_view_key") {
		s.warn(ctx, "sticky upsert failed", err)
		return nil
	}
	// A concurrent first-request won the insert; serve its assignment so the
	// device sees one ad this week.
	existing, getErr := s.repo.GetView(ctx, input.DeviceHash, input.AppID, input.PlacementID, weekStart)
	if getErr != nil || existing == nil {
		return nil
	}
	campaign, getErr := s.campaigns.GetByID(ctx, existing.CampaignID)
	if getErr != nil {
		return nil
	}
	if !campaign.Servable() {
		// The pinned campaign died mid-week; re-pin to the fresh winner.
		if updErr := s.repo.UpdateViewCampaign(ctx, existing.ID, ad.CampaignID, ad.purchaseID, now); updErr != nil {
			s.warn(ctx, "re-pinning sticky view failed", updErr)
		}
		return nil
	}
	sticky, buildErr := s.buildAd(ctx, campaign, existing.PurchaseID, input.PlacementID, now)
	if buildErr != nil {
		return nil
	}
	return sticky
}

func (s *service) buildAd(ctx context.Context, campaign *models.Campaign, purchaseID *uuid.UUID, placementID string, now time.Time) (*ServedAd, error) {
	expiresAt := now.Add(s.cfg.NonceTTL).UTC().Truncate(time.Second)
	expiry := expiresAt.Format(time.RFC3339)
	nonce := ClickNonce(campaign.ID, placementID, expiry)

	ad := &ServedAd{
		AdID:       campaign.ID,
		CampaignID: campaign.ID,
		Headline:   campaign.Headline,
		AppName:    fallbackAppName,
		ClickURL: fmt.Sprintf("/r/%s?p=%s&e=%s&n=%s",
			campaign.ID, url.QueryEscape(placementID), url.QueryEscape(expiry), nonce),
		Nonce:          nonce,
		ExpiresAt:      expiresAt,
		destinationURL: *campaign.DestinationURL,
		purchaseID:     purchaseID,
	}
	if campaign.Body != nil {
		ad.Body = *campaign.Body
	}
	if campaign.CTA != nil {
		ad.CTA = *campaign.CTA
	}

	app, err := s.apps.GetByID(ctx, campaign.AppID)
	if err != nil {
		return nil, err
	}
	if app != nil {
		if app.Name != "" {
			ad.AppName = app.Name
		}
		if app.Subtitle != nil {
			ad.AppSubtitle = *app.Subtitle
		}
		if app.IconURL != nil {
			ad.AppIconURL = *app.IconURL
		}
	}
	return ad, nil
}

func (s *service) RecordImpression(ctx context.Context, input EventInput) error {
	if err := s.recordEvent(ctx, enums.AdEventTypeImpression, input); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncImpression()
	}
	return nil
}

func (s *service) RecordEvent(ctx context.Context, eventType string, input EventInput) error {
	parsed, err := enums.ParseAdEventType(eventType)
	if err != nil {
		return apperrors.New(apperrors.CodeValidation, err.Error())
	}
	if err := s.recordEvent(ctx, parsed, input); err != nil {
		return err
	}
	if s.metrics != nil && parsed == enums.AdEventTypeImpression {
		s.metrics.IncImpression()
	}
	return nil
}

func (s *service) ResolveClick(ctx context.Context, adID uuid.UUID, placementID, expiry, nonce, deviceHash string) (string, error) {
	expiresAt, err := time.Parse(time.RFC3339, expiry)
	if err != nil {
		return "", apperrors.New(apperrors.CodeValidation, "malformed click token expiry")
	}
	if ClickNonce(adID, placementID, expiry) != nonce {
		return "", apperrors.New(apperrors.CodeValidation, "click token mismatch")
	}
	if s.clk.Now().After(expiresAt) {
		return "", apperrors.New(apperrors.CodeValidation, "click token expired")
	}

	campaign, err := s.campaigns.GetByID(ctx, adID)
	if err != nil {
		return "", err
	}
	if !campaign.Servable() {
		return "", apperrors.New(apperrors.CodeNotFound, "ad not found")
	}

	campaignID := campaign.ID
	if err := s.recordEvent(ctx, enums.AdEventTypeClick, EventInput{
		AppID:       campaign.AppID,
		CampaignID:  &campaignID,
		PlacementID: placementID,
		DeviceHash:  deviceHash,
	}); err != nil {
		// The redirect still works; losing one click row is acceptable.
		s.warn(ctx, "recording click failed", err)
	}
	if s.metrics != nil {
		s.metrics.IncClick()
	}
	return *campaign.DestinationURL, nil
}

func (s *service) recordServe(ctx context.Context, input ServeInput, ad *ServedAd, weekStart, now time.Time) {
	campaignID := ad.CampaignID
	event := s.newEvent(enums.AdEventTypeServe, EventInput{
		AppID:       input.AppID,
		CampaignID:  &campaignID,
		PurchaseID:  ad.purchaseID,
		PlacementID: input.PlacementID,
		DeviceHash:  input.DeviceHash,
	}, weekStart, now)
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		s.warn(ctx, "recording serve failed", err)
	}
	s.publish(ctx, event)
	if s.metrics != nil {
		s.metrics.IncServe("served")
	}
}

func (s *service) recordNoFill(ctx context.Context, input ServeInput, weekStart, now time.Time) {
	event := s.newEvent(enums.AdEventTypeNoFill, EventInput{
		AppID:       input.AppID,
		PlacementID: input.PlacementID,
		DeviceHash:  input.DeviceHash,
	}, weekStart, now)
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		s.warn(ctx, "recording no-fill failed", err)
	}
	s.publish(ctx, event)
	if s.metrics != nil {
		s.metrics.IncServe("no_fill")
	}
}

func (s *service) recordEvent(ctx context.Context, eventType enums.AdEventType, input EventInput) error {
	if input.AppID == uuid.Nil || input.PlacementID == "" {
		return apperrors.New(apperrors.CodeValidation, "app_id and placement_id are required")
	}
	now := s.clk.Now()
	event := s.newEvent(eventType, input, clock.WeekStart(now), now)
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		return err
	}
	s.publish(ctx, event)
	return nil
}

func (s *service) newEvent(eventType enums.AdEventType, input EventInput, weekStart, now time.Time) *models.AdEvent {
	event := &models.AdEvent{
		Type:        eventType,
		AppID:       input.AppID,
		CampaignID:  input.CampaignID,
		PurchaseID:  input.PurchaseID,
		PlacementID: input.PlacementID,
		WeekStart:   weekStart,
		OccurredAt:  now.UTC(),
	}
	if input.DeviceHash != "" {
		hash := input.DeviceHash
		event.DeviceHash = &hash
	}
	return event
}

func (s *service) publish(ctx context.Context, event *models.AdEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAdEvent(ctx, event); err != nil {
		s.warn(ctx, "publishing ad event failed", err)
	}
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(ctx, fmt.Sprintf("%s: %v", msg, err))
}
