package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/internal/booking"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
)

type testBookingService struct {
	createFn func(ctx context.Context, input booking.CreateIntentInput) (*booking.IntentResult, error)
	getFn    func(ctx context.Context, id, userID uuid.UUID) (*models.BookingIntent, error)
	listFn   func(ctx context.Context, userID uuid.UUID) ([]models.BookingIntent, error)
}

func (s *testBookingService) CreateIntent(ctx context.Context, input booking.CreateIntentInput) (*booking.IntentResult, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return nil, nil
}

func (s *testBookingService) GetIntent(ctx context.Context, id, userID uuid.UUID) (*models.BookingIntent, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id, userID)
	}
	return nil, nil
}

func (s *testBookingService) ListIntents(ctx context.Context, userID uuid.UUID) ([]models.BookingIntent, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID)
	}
	return nil, nil
}

func (s *testBookingService) ConfirmAtomic(context.Context, uuid.UUID) error { return nil }
func (s *testBookingService) HandleCheckoutCompleted(context.Context, string, string) error {
	return nil
}
func (s *testBookingService) HandleCheckoutExpired(context.Context, string) error { return nil }
func (s *testBookingService) HandlePaymentFailed(context.Context, string) error   { return nil }
func (s *testBookingService) Reconcile(context.Context) (int, error)              { return 0, nil }
func (s *testBookingService) Repo() booking.Repository                            { return nil }

func TestBookingCreateReturnsCheckoutURL(t *testing.T) {
	userID := uuid.New()
	campaignID := uuid.New()
	svc := &testBookingService{
		createFn: func(ctx context.Context, input booking.CreateIntentInput) (*booking.IntentResult, error) {
			if input.UserID != userID {
				t.Fatalf("caller identity not propagated: %s", input.UserID)
			}
			if input.CampaignID != campaignID || input.Percentage != 20 {
				t.Fatalf("unexpected input %+v", input)
			}
			return &booking.IntentResult{
				Intent:      &models.BookingIntent{ID: uuid.New(), UserID: input.UserID},
				CheckoutURL: "https://checkout.stripe.com/c/pay/cs_test",
			}, nil
		},
	}

	body := `{"campaign_id":"` + campaignID.String() + `","percentage":20,"apply_credits":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))

	resp := httptest.NewRecorder()
	BookingCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data booking.IntentResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.CheckoutURL == "" {
		t.Fatal("checkout url missing from response")
	}
}

func TestBookingCreateRejectsOutOfRangePercentage(t *testing.T) {
	svc := &testBookingService{
		createFn: func(context.Context, booking.CreateIntentInput) (*booking.IntentResult, error) {
			t.Fatal("service must not be reached on invalid input")
			return nil, nil
		},
	}

	body := `{"campaign_id":"` + uuid.NewString() + `","percentage":41}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.New()))

	resp := httptest.NewRecorder()
	BookingCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestBookingDetailRejectsMalformedID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/not-a-uuid", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.New()))
	req = addRouteParam(req, "bookingId", "not-a-uuid")

	resp := httptest.NewRecorder()
	BookingDetail(&testBookingService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestBookingListScopedToCaller(t *testing.T) {
	userID := uuid.New()
	svc := &testBookingService{
		listFn: func(ctx context.Context, got uuid.UUID) ([]models.BookingIntent, error) {
			if got != userID {
				t.Fatalf("expected caller scope %s, got %s", userID, got)
			}
			return []models.BookingIntent{{ID: uuid.New(), UserID: userID}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))

	resp := httptest.NewRecorder()
	BookingList(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}
