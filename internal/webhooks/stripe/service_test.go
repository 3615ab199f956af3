package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
)

type fakeRepo struct {
	records map[string]*models.WebhookEvent
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[string]*models.WebhookEvent{}}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Insert(_ context.Context, event *models.WebhookEvent) error {
	key := event.Provider + ":" + event.EventID
	if _, exists := f.records[key]; exists {
		return fmt.Errorf("duplicate key value violates unique constraint \"idx_webhook_provider_event\"")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	f.records[key] = event
	return nil
}

func (f *fakeRepo) GetByProviderEventID(_ context.Context, provider, eventID string) (*models.WebhookEvent, error) {
	if record := f.records[provider+":"+eventID]; record != nil {
		cp := *record
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	for _, record := range f.records {
		if record.ID == id {
			record.Processed = true
			record.LastError = nil
		}
	}
	return nil
}

func (f *fakeRepo) SetError(_ context.Context, id uuid.UUID, message string) error {
	for _, record := range f.records {
		if record.ID == id {
			msg := message
			record.LastError = &msg
		}
	}
	return nil
}

type fakeBooking struct {
	completed []string
	expired   []string
	failed    []string
	err       error
}

func (f *fakeBooking) HandleCheckoutCompleted(_ context.Context, sessionID, paymentIntentID string) error {
	if f.err != nil {
		return f.err
	}
	f.completed = append(f.completed, sessionID+"/"+paymentIntentID)
	return nil
}

func (f *fakeBooking) HandleCheckoutExpired(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	f.expired = append(f.expired, sessionID)
	return nil
}

func (f *fakeBooking) HandlePaymentFailed(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	f.failed = append(f.failed, sessionID)
	return nil
}

func sessionEvent(t *testing.T, eventType stripe.EventType, sessionID, paymentIntentID string) *stripe.Event {
	t.Helper()
	payload := map[string]any{"id": sessionID}
	if paymentIntentID != "" {
		payload["payment_intent"] = map[string]any{"id": paymentIntentID}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func newTestService(t *testing.T, repo *fakeRepo, booking *fakeBooking) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Booking: booking})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func TestHandleEventDispatchesCheckoutCompleted(t *testing.T) {
	repo := newFakeRepo()
	booking := &fakeBooking{}
	svc := newTestService(t, repo, booking)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_1", "pi_1")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(booking.completed) != 1 || booking.completed[0] != "cs_1/pi_1" {
		t.Fatalf("completed handler not invoked: %v", booking.completed)
	}

	record := repo.records["stripe:"+event.ID]
	if record == nil || !record.Processed {
		t.Fatal("event must be marked processed")
	}
}

func TestHandleEventDedupesRedelivery(t *testing.T) {
	repo := newFakeRepo()
	booking := &fakeBooking{}
	svc := newTestService(t, repo, booking)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_1", "pi_1")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery error: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivery error: %v", err)
	}
	if len(booking.completed) != 1 {
		t.Fatalf("processed events must not be re-dispatched, got %d calls", len(booking.completed))
	}
}

func TestHandleEventRetriesFailedDelivery(t *testing.T) {
	repo := newFakeRepo()
	booking := &fakeBooking{err: fmt.Errorf("datastore down")}
	svc := newTestService(t, repo, booking)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, "cs_2", "")
	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("handler failure must surface so the provider redelivers")
	}

	record := repo.records["stripe:"+event.ID]
	if record.Processed {
		t.Fatal("failed event must not be marked processed")
	}
	if record.LastError == nil {
		t.Fatal("failure reason must be recorded")
	}

	// Redelivery after the fault clears succeeds.
	booking.err = nil
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if len(booking.expired) != 1 || booking.expired[0] != "cs_2" {
		t.Fatalf("expired handler not invoked on retry: %v", booking.expired)
	}
	if !repo.records["stripe:"+event.ID].Processed {
		t.Fatal("retried event must be marked processed")
	}
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	repo := newFakeRepo()
	booking := &fakeBooking{}
	svc := newTestService(t, repo, booking)

	event := &stripe.Event{ID: "evt_x", Type: "customer.created", Data: &stripe.EventData{Raw: []byte(`{}`)}}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(booking.completed)+len(booking.expired)+len(booking.failed) != 0 {
		t.Fatal("unknown event types must not dispatch")
	}
	if !repo.records["stripe:evt_x"].Processed {
		t.Fatal("unknown event types are still acknowledged")
	}
}

func TestHandleEventAsyncPaymentFailed(t *testing.T) {
	repo := newFakeRepo()
	booking := &fakeBooking{}
	svc := newTestService(t, repo, booking)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentFailed, "cs_3", "")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(booking.failed) != 1 || booking.failed[0] != "cs_3" {
		t.Fatalf("payment-failed handler not invoked: %v", booking.failed)
	}
}
