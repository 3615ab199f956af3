package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

type stubWebhookService struct {
	called int
}

func (s *stubWebhookService) HandleEvent(context.Context, *stripe.Event) error {
	s.called++
	return nil
}

type stubStripeClient struct{}

func (stubStripeClient) SigningSecret() string { return "whsec_test" }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	svc := &stubWebhookService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()

	StripeWebhook(svc, stubStripeClient{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.called != 0 {
		t.Fatal("unsigned payloads must not be dispatched")
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubWebhookService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	resp := httptest.NewRecorder()

	StripeWebhook(svc, stubStripeClient{}, testLogger())(resp, req)

	if resp.Code == http.StatusOK {
		t.Fatal("forged signature must not be accepted")
	}
	if svc.called != 0 {
		t.Fatal("forged payloads must not be dispatched")
	}
}

func TestStripeWebhookRequiresWiring(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()

	StripeWebhook(nil, stubStripeClient{}, testLogger())(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
