package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/admeshlabs/admesh-backend/pkg/db"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	pkgerrors "github.com/admeshlabs/admesh-backend/pkg/errors"
)

const providerStripe = "stripe"

// BookingHandler is the slice of the booking service the webhook consumer
// drives.
type BookingHandler interface {
	HandleCheckoutCompleted(ctx context.Context, sessionID, paymentIntentID string) error
	HandleCheckoutExpired(ctx context.Context, sessionID string) error
	HandlePaymentFailed(ctx context.Context, sessionID string) error
}

// ServiceParams bundles the collaborators the webhook service needs.
type ServiceParams struct {
	Repo    Repository
	Booking BookingHandler
}

// Service consumes Stripe events with at-least-once delivery semantics,
// deduplicating by (provider, event_id).
type Service struct {
	repo    Repository
	booking BookingHandler
}

// NewService wires a Stripe webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook repo required")
	}
	if params.Booking == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking handler required")
	}
	return &Service{
		repo:    params.Repo,
		booking: params.Booking,
	}, nil
}

// HandleEvent dedupes and dispatches one Stripe event. Redeliveries of a
// processed event return nil; redeliveries of a failed event retry the
// handler.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}

	record, alreadyProcessed, err := s.claim(ctx, event)
	if err != nil {
		return err
	}
	if alreadyProcessed {
		return nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		_ = s.repo.SetError(ctx, record.ID, err.Error())
		return err
	}
	return s.repo.MarkProcessed(ctx, record.ID)
}

// claim inserts the delivery record, tolerating a concurrent or earlier
// delivery of the same event.
func (s *Service) claim(ctx context.Context, event *stripe.Event) (*models.WebhookEvent, bool, error) {
	record := &models.WebhookEvent{
		Provider:  providerStripe,
		EventID:   event.ID,
		EventType: string(event.Type),
	}
	err := s.repo.Insert(ctx, record)
	if err == nil {
		return record, false, nil
	}
	if !db.IsUniqueViolation(err, "idx_webhook_provider_event") {
		return nil, false, err
	}

	existing, getErr := s.repo.GetByProviderEventID(ctx, providerStripe, event.ID)
	if getErr != nil {
		return nil, false, getErr
	}
	if existing == nil {
		return nil, false, err
	}
	return existing, existing.Processed, nil
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		paymentIntentID := ""
		if session.PaymentIntent != nil {
			paymentIntentID = session.PaymentIntent.ID
		}
		return s.booking.HandleCheckoutCompleted(ctx, session.ID, paymentIntentID)
	case stripe.EventTypeCheckoutSessionExpired:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.booking.HandleCheckoutExpired(ctx, session.ID)
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.booking.HandlePaymentFailed(ctx, session.ID)
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypeChargeRefunded:
		// Recorded for audit. Intent transitions are driven by the checkout
		// session events; refunds are initiated by the booking service itself.
		return nil
	default:
		// Unsubscribed event types are acknowledged without action.
		return nil
	}
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	if event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
	}
	if session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return &session, nil
}
