package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/internal/credits"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
)

type testCreditsService struct {
	balanceFn func(ctx context.Context, userID uuid.UUID) (*credits.BalanceSummary, error)
	convertFn func(ctx context.Context, userID uuid.UUID, amountCents int64) (*credits.ConversionResult, error)
	grantFn   func(ctx context.Context, userID uuid.UUID, amountCents int64, metadata json.RawMessage) (*models.CreditLedgerEntry, error)
}

func (s *testCreditsService) Balance(ctx context.Context, userID uuid.UUID) (*credits.BalanceSummary, error) {
	if s.balanceFn != nil {
		return s.balanceFn(ctx, userID)
	}
	return &credits.BalanceSummary{}, nil
}

func (s *testCreditsService) ListEntries(context.Context, uuid.UUID, int) ([]models.CreditLedgerEntry, error) {
	return nil, nil
}

func (s *testCreditsService) Grant(ctx context.Context, userID uuid.UUID, amountCents int64, metadata json.RawMessage) (*models.CreditLedgerEntry, error) {
	if s.grantFn != nil {
		return s.grantFn(ctx, userID, amountCents, metadata)
	}
	return &models.CreditLedgerEntry{}, nil
}

func (s *testCreditsService) CreateHold(context.Context, uuid.UUID, uuid.UUID, int64) (*models.CreditHold, error) {
	return nil, nil
}
func (s *testCreditsService) CaptureHold(context.Context, uuid.UUID) error { return nil }
func (s *testCreditsService) CaptureHoldTx(context.Context, *gorm.DB, uuid.UUID) error {
	return nil
}
func (s *testCreditsService) ReleaseHold(context.Context, uuid.UUID, string) error { return nil }

func (s *testCreditsService) ConvertEarnings(ctx context.Context, userID uuid.UUID, amountCents int64) (*credits.ConversionResult, error) {
	if s.convertFn != nil {
		return s.convertFn(ctx, userID, amountCents)
	}
	return &credits.ConversionResult{}, nil
}

func (s *testCreditsService) Repo() credits.Repository { return nil }

func TestCreditsBalanceScopedToCaller(t *testing.T) {
	userID := uuid.New()
	svc := &testCreditsService{
		balanceFn: func(ctx context.Context, got uuid.UUID) (*credits.BalanceSummary, error) {
			if got != userID {
				t.Fatalf("expected caller scope %s, got %s", userID, got)
			}
			return &credits.BalanceSummary{BalanceCents: 5000, HeldCents: 1000, SpendableCents: 4000}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))

	resp := httptest.NewRecorder()
	CreditsBalance(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data credits.BalanceSummary `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.SpendableCents != 4000 {
		t.Fatalf("unexpected balance %+v", envelope.Data)
	}
}

func TestCreditsConvertRejectsNonPositiveAmount(t *testing.T) {
	svc := &testCreditsService{
		convertFn: func(context.Context, uuid.UUID, int64) (*credits.ConversionResult, error) {
			t.Fatal("service must not be reached on invalid input")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/convert", strings.NewReader(`{"amount_cents":0}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.New()))

	resp := httptest.NewRecorder()
	CreditsConvert(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminCreditsGrantTargetsRequestedUser(t *testing.T) {
	target := uuid.New()
	svc := &testCreditsService{
		grantFn: func(ctx context.Context, userID uuid.UUID, amountCents int64, metadata json.RawMessage) (*models.CreditLedgerEntry, error) {
			if userID != target {
				t.Fatalf("expected grant target %s, got %s", target, userID)
			}
			if amountCents != 2500 {
				t.Fatalf("unexpected amount %d", amountCents)
			}
			return &models.CreditLedgerEntry{ID: uuid.New(), UserID: userID, AmountCents: amountCents}, nil
		},
	}

	body := `{"user_id":"` + target.String() + `","amount_cents":2500}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/credits/grant", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.New()))

	resp := httptest.NewRecorder()
	AdminCreditsGrant(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}
