package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/internal/adserve"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
)

type testServeService struct {
	serveFn      func(ctx context.Context, input adserve.ServeInput) (*adserve.ServedAd, error)
	impressionFn func(ctx context.Context, input adserve.EventInput) error
	eventFn      func(ctx context.Context, eventType string, input adserve.EventInput) error
	clickFn      func(ctx context.Context, adID uuid.UUID, placementID, expiry, nonce, deviceHash string) (string, error)
}

func (s *testServeService) Serve(ctx context.Context, input adserve.ServeInput) (*adserve.ServedAd, error) {
	if s.serveFn != nil {
		return s.serveFn(ctx, input)
	}
	return nil, nil
}

func (s *testServeService) RecordImpression(ctx context.Context, input adserve.EventInput) error {
	if s.impressionFn != nil {
		return s.impressionFn(ctx, input)
	}
	return nil
}

func (s *testServeService) RecordEvent(ctx context.Context, eventType string, input adserve.EventInput) error {
	if s.eventFn != nil {
		return s.eventFn(ctx, eventType, input)
	}
	return nil
}

func (s *testServeService) ResolveClick(ctx context.Context, adID uuid.UUID, placementID, expiry, nonce, deviceHash string) (string, error) {
	if s.clickFn != nil {
		return s.clickFn(ctx, adID, placementID, expiry, nonce, deviceHash)
	}
	return "", nil
}

func (s *testServeService) Repo() adserve.Repository { return nil }

func appContext(r *http.Request, appID uuid.UUID) *http.Request {
	app := &models.PublisherApp{ID: appID, Name: "Host App"}
	return r.WithContext(middleware.WithApp(r.Context(), app))
}

func TestServeReturnsAdPayload(t *testing.T) {
	appID := uuid.New()
	svc := &testServeService{
		serveFn: func(ctx context.Context, input adserve.ServeInput) (*adserve.ServedAd, error) {
			if input.AppID != appID {
				t.Fatalf("app id not propagated: %s", input.AppID)
			}
			if input.PlacementID != "home_feed" || input.DeviceHash != "device-1" {
				t.Fatalf("unexpected input %+v", input)
			}
			return &adserve.ServedAd{
				AdID:      uuid.New(),
				Headline:  "Try Puzzler",
				AppName:   "Puzzler",
				ClickURL:  "/r/x",
				Nonce:     "abc",
				ExpiresAt: time.Now().Add(6 * time.Hour),
			}, nil
		},
	}

	body := `{"placement_id":"home_feed","device_hash":"device-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/serve", strings.NewReader(body))
	req = appContext(req, appID)

	resp := httptest.NewRecorder()
	Serve(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data adserve.ServedAd `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Headline != "Try Puzzler" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestServeNoFillReturns204(t *testing.T) {
	svc := &testServeService{
		serveFn: func(context.Context, adserve.ServeInput) (*adserve.ServedAd, error) {
			return nil, nil
		},
	}

	body := `{"placement_id":"home_feed","device_hash":"device-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/serve", strings.NewReader(body))
	req = appContext(req, uuid.New())

	resp := httptest.NewRecorder()
	Serve(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if resp.Body.Len() != 0 {
		t.Fatalf("no-fill must have an empty body, got %q", resp.Body.String())
	}
}

func TestServeWithoutAppContext(t *testing.T) {
	body := `{"placement_id":"home_feed","device_hash":"device-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/serve", strings.NewReader(body))

	resp := httptest.NewRecorder()
	Serve(&testServeService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestImpressionAccepted(t *testing.T) {
	appID := uuid.New()
	campaignID := uuid.New()
	recorded := false
	svc := &testServeService{
		impressionFn: func(ctx context.Context, input adserve.EventInput) error {
			recorded = true
			if input.AppID != appID {
				t.Fatalf("app id not propagated: %s", input.AppID)
			}
			if input.CampaignID == nil || *input.CampaignID != campaignID {
				t.Fatalf("campaign id not propagated: %v", input.CampaignID)
			}
			return nil
		},
	}

	body := `{"placement_id":"home_feed","device_hash":"device-1","campaign_id":"` + campaignID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/impression", strings.NewReader(body))
	req = appContext(req, appID)

	resp := httptest.NewRecorder()
	Impression(svc, testLogger())(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !recorded {
		t.Fatal("impression not recorded")
	}
}

func TestEventPassesKind(t *testing.T) {
	appID := uuid.New()
	var gotKind string
	svc := &testServeService{
		eventFn: func(ctx context.Context, eventType string, input adserve.EventInput) error {
			gotKind = eventType
			return nil
		},
	}

	body := `{"placement_id":"home_feed","device_hash":"device-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/events/click", strings.NewReader(body))
	req = appContext(req, appID)
	req = addRouteParam(req, "kind", "click")

	resp := httptest.NewRecorder()
	Event(svc, testLogger())(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if gotKind != "click" {
		t.Fatalf("expected kind click, got %q", gotKind)
	}
}

func TestClickRedirectFollowsDestination(t *testing.T) {
	adID := uuid.New()
	svc := &testServeService{
		clickFn: func(ctx context.Context, gotAd uuid.UUID, placementID, expiry, nonce, deviceHash string) (string, error) {
			if gotAd != adID {
				t.Fatalf("unexpected ad id %s", gotAd)
			}
			if placementID != "home_feed" || nonce != "abc123" {
				t.Fatalf("token params not forwarded: p=%q n=%q", placementID, nonce)
			}
			return "https://apps.example.com/puzzler", nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/r/"+adID.String()+"?p=home_feed&e=2026-03-04T18%3A00%3A00Z&n=abc123", nil)
	req = addRouteParam(req, "adId", adID.String())

	resp := httptest.NewRecorder()
	ClickRedirect(svc, testLogger())(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302 got %d", resp.Code)
	}
	if loc := resp.Header().Get("Location"); loc != "https://apps.example.com/puzzler" {
		t.Fatalf("unexpected redirect target %q", loc)
	}
}
