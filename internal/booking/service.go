package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/internal/campaigns"
	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/internal/credits"
	"github.com/admeshlabs/admesh-backend/internal/slots"
	"github.com/admeshlabs/admesh-backend/internal/users"
	"github.com/admeshlabs/admesh-backend/pkg/config"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
	apperrors "github.com/admeshlabs/admesh-backend/pkg/errors"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

const (
	reasonCapacityExceeded = "capacity_exceeded"
	reasonPaymentExpired   = "payment_expired"
	reasonPaymentFailed    = "payment_failed"
)

// errAlreadyResolved aborts a confirm transaction whose intent reached a
// final state after the pre-transaction read. Not an error for the caller.
var errAlreadyResolved = errors.New("intent already resolved")

// TxRunner executes fn inside a datastore transaction. db.Client satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateIntentInput captures one purchase attempt.
type CreateIntentInput struct {
	UserID       uuid.UUID `json:"user_id"`
	CampaignID   uuid.UUID `json:"campaign_id" validate:"required"`
	Percentage   int       `json:"percentage" validate:"required,min=1,max=40"`
	ApplyCredits bool      `json:"apply_credits"`
}

// IntentResult is returned from intent creation. CheckoutURL is set only when
// a cash leg remains to be collected.
type IntentResult struct {
	Intent      *models.BookingIntent `json:"intent"`
	CheckoutURL string                `json:"checkout_url,omitempty"`
}

// Service owns the booking intent state machine.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error)
	GetIntent(ctx context.Context, id, userID uuid.UUID) (*models.BookingIntent, error)
	ListIntents(ctx context.Context, userID uuid.UUID) ([]models.BookingIntent, error)
	// ConfirmAtomic runs the all-or-nothing capacity check + purchase insert
	// + hold capture for an intent whose payment (if any) has settled.
	ConfirmAtomic(ctx context.Context, intentID uuid.UUID) error
	// HandleCheckoutCompleted reacts to a settled checkout session.
	HandleCheckoutCompleted(ctx context.Context, sessionID, paymentIntentID string) error
	// HandleCheckoutExpired reacts to a lapsed checkout session.
	HandleCheckoutExpired(ctx context.Context, sessionID string) error
	// HandlePaymentFailed reacts to an async payment failure.
	HandlePaymentFailed(ctx context.Context, sessionID string) error
	// Reconcile sweeps intents stuck beyond the staleness threshold and
	// resolves them against the payment processor. Returns how many were
	// touched.
	Reconcile(ctx context.Context) (int, error)
	Repo() Repository
}

type service struct {
	repo      Repository
	slotsRepo slots.Repository
	slotsSvc  slots.Service
	campaigns campaigns.Repository
	users     users.Repository
	credits   credits.Service
	payments  StripePaymentClient
	tx        TxRunner
	clk       clock.Clock
	logg      *logger.Logger
	cfg       config.BookingConfig
	baseURL   string
}

// ServiceDeps bundles the collaborators the booking service needs.
type ServiceDeps struct {
	Repo       Repository
	SlotsRepo  slots.Repository
	SlotsSvc   slots.Service
	Campaigns  campaigns.Repository
	Users      users.Repository
	Credits    credits.Service
	Payments   StripePaymentClient
	Tx         TxRunner
	Clock      clock.Clock
	Logger     *logger.Logger
	Config     config.BookingConfig
	AppBaseURL string
}

// NewService wires a booking service with the provided collaborators.
func NewService(deps ServiceDeps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("booking repository required")
	case deps.SlotsRepo == nil || deps.SlotsSvc == nil:
		return nil, fmt.Errorf("slots collaborators required")
	case deps.Campaigns == nil:
		return nil, fmt.Errorf("campaigns repository required")
	case deps.Users == nil:
		return nil, fmt.Errorf("users repository required")
	case deps.Credits == nil:
		return nil, fmt.Errorf("credits service required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock required")
	}
	return &service{
		repo:      deps.Repo,
		slotsRepo: deps.SlotsRepo,
		slotsSvc:  deps.SlotsSvc,
		campaigns: deps.Campaigns,
		users:     deps.Users,
		credits:   deps.Credits,
		payments:  deps.Payments,
		tx:        deps.Tx,
		clk:       deps.Clock,
		logg:      deps.Logger,
		cfg:       deps.Config,
		baseURL:   strings.TrimRight(deps.AppBaseURL, "/"),
	}, nil
}

func (s *service) Repo() Repository {
	return s.repo
}

func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if input.Percentage < slots.MinPercentage || input.Percentage > slots.MaxPercentage {
		return nil, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("percentage must be between %d and %d", slots.MinPercentage, slots.MaxPercentage))
	}

	campaign, err := s.campaigns.GetByID(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "campaign not found")
	}
	if campaign.OwnerUserID != input.UserID {
		return nil, apperrors.New(apperrors.CodeForbidden, "campaign belongs to another account")
	}

	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
	}

	quote, err := s.slotsSvc.QuotePercentage(ctx, input.UserID, input.Percentage)
	if err != nil {
		return nil, err
	}

	var creditsApplied int64
	if input.ApplyCredits {
		summary, err := s.credits.Balance(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		creditsApplied = summary.SpendableCents
		if creditsApplied > quote.QuotedPriceCents {
			creditsApplied = quote.QuotedPriceCents
		}
	}

	cashDue := quote.QuotedPriceCents - creditsApplied
	if cashDue < 0 {
		cashDue = 0
	}
	if user.BypassCheckout {
		cashDue = 0
	}

	intent := &models.BookingIntent{
		UserID:           input.UserID,
		CampaignID:       campaign.ID,
		SlotID:           quote.SlotID,
		Percentage:       input.Percentage,
		QuotedPriceCents: quote.QuotedPriceCents,
		CreditsApplied:   creditsApplied,
		CashDueCents:     cashDue,
		Status:           enums.BookingIntentStatusCreated,
	}
	if err := s.repo.Create(ctx, intent); err != nil {
		return nil, err
	}

	if creditsApplied > 0 {
		if _, err := s.credits.CreateHold(ctx, input.UserID, intent.ID, creditsApplied); err != nil {
			return nil, err
		}
	}

	ctx = s.withIntentLog(ctx, intent.ID)

	if cashDue == 0 {
		// Credits (or bypass) cover everything; confirm synchronously.
		if err := s.ConfirmAtomic(ctx, intent.ID); err != nil {
			return nil, err
		}
		confirmed, err := s.repo.GetByID(ctx, intent.ID)
		if err != nil {
			return nil, err
		}
		return &IntentResult{Intent: confirmed}, nil
	}

	if s.payments == nil {
		return nil, apperrors.New(apperrors.CodeDependency, "payment processor unavailable")
	}
	session, err := s.createCheckoutSession(ctx, user, intent, campaign)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetCheckoutSession(ctx, intent.ID, session.ID); err != nil {
		return nil, err
	}
	intent.CheckoutSessionID = &session.ID
	if err := s.repo.SetStatus(ctx, intent.ID, enums.BookingIntentStatusAwaitingPayment, nil); err != nil {
		return nil, err
	}
	intent.Status = enums.BookingIntentStatusAwaitingPayment

	return &IntentResult{Intent: intent, CheckoutURL: session.URL}, nil
}

func (s *service) createCheckoutSession(ctx context.Context, user *models.User, intent *models.BookingIntent, campaign *models.Campaign) (*stripe.CheckoutSession, error) {
	description := fmt.Sprintf("%d%% of weekly network inventory for %q", intent.Percentage, campaign.Headline)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(intent.CashDueCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(description),
				},
			},
		}},
		SuccessURL:        stripe.String(s.baseURL + s.cfg.CheckoutSuccess),
		CancelURL:         stripe.String(s.baseURL + s.cfg.CheckoutCancel),
		ClientReferenceID: stripe.String(intent.ID.String()),
		Metadata: map[string]string{
			"booking_intent_id": intent.ID.String(),
		},
	}
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		params.Customer = stripe.String(*user.StripeCustomerID)
	} else if user.Email != "" {
		params.CustomerEmail = stripe.String(user.Email)
	}
	return s.payments.CreateCheckoutSession(ctx, params)
}

func (s *service) GetIntent(ctx context.Context, id, userID uuid.UUID) (*models.BookingIntent, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("intent id is required")
	}
	intent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "booking intent not found")
	}
	if userID != uuid.Nil && intent.UserID != userID {
		return nil, apperrors.New(apperrors.CodeForbidden, "booking intent belongs to another account")
	}
	return intent, nil
}

func (s *service) ListIntents(ctx context.Context, userID uuid.UUID) ([]models.BookingIntent, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListByUser(ctx, userID)
}

// ConfirmAtomic is the sole serialization point for slot capacity. It takes
// the slot row lock, re-checks both caps, inserts the purchase, captures the
// hold, and marks the intent confirmed in one transaction.
func (s *service) ConfirmAtomic(ctx context.Context, intentID uuid.UUID) error {
	intent, err := s.repo.GetByID(ctx, intentID)
	if err != nil {
		return err
	}
	if intent == nil {
		return apperrors.New(apperrors.CodeNotFound, "booking intent not found")
	}
	if intent.Status == enums.BookingIntentStatusConfirmed {
		return nil
	}
	if intent.Status.IsTerminal() {
		return apperrors.New(apperrors.CodeStateConflict,
			fmt.Sprintf("intent is already %s", intent.Status))
	}

	confirmErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		slotsRepo := s.slotsRepo.WithTx(tx)

		// Re-read under the row lock: a concurrent confirm (webhook
		// redelivery racing the reconcile sweep) may have resolved the
		// intent after the read above.
		current, err := repo.GetByIDLocked(ctx, intent.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperrors.New(apperrors.CodeNotFound, "booking intent not found")
		}
		if current.Status == enums.BookingIntentStatusConfirmed || current.Status.IsTerminal() {
			return errAlreadyResolved
		}
		intent = current

		slot, err := repo.LockSlot(ctx, intent.SlotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return apperrors.New(apperrors.CodeNotFound, "slot not found")
		}

		sold, err := slotsRepo.PurchasedPercentage(ctx, intent.SlotID)
		if err != nil {
			return err
		}
		if sold+intent.Percentage > slots.SlotCapacity {
			return apperrors.New(apperrors.CodeCapacity, reasonCapacityExceeded)
		}
		owned, err := slotsRepo.AdvertiserPercentage(ctx, intent.SlotID, intent.UserID)
		if err != nil {
			return err
		}
		if owned+intent.Percentage > slots.MaxPercentage {
			return apperrors.New(apperrors.CodeCapacity, reasonCapacityExceeded)
		}

		intentRef := intent.ID
		purchase := &models.SlotPurchase{
			SlotID:          intent.SlotID,
			CampaignID:      intent.CampaignID,
			UserID:          intent.UserID,
			BookingIntentID: &intentRef,
			Percentage:      intent.Percentage,
			PricePaidCents:  intent.QuotedPriceCents,
			Status:          enums.SlotPurchaseStatusConfirmed,
		}
		if err := slotsRepo.CreatePurchase(ctx, purchase); err != nil {
			return err
		}

		if err := s.credits.CaptureHoldTx(ctx, tx, intent.ID); err != nil {
			return err
		}

		return repo.MarkConfirmed(ctx, intent.ID, s.clk.Now())
	})

	if confirmErr == nil {
		s.info(ctx, intent.ID, "booking intent confirmed")
		return nil
	}
	if errors.Is(confirmErr, errAlreadyResolved) {
		// The concurrent winner owns the intent's outcome.
		return nil
	}
	return s.handleConfirmFailure(ctx, intent, confirmErr)
}

func (s *service) handleConfirmFailure(ctx context.Context, intent *models.BookingIntent, confirmErr error) error {
	appErr := apperrors.As(confirmErr)
	isCapacity := appErr != nil && appErr.Code() == apperrors.CodeCapacity

	if isCapacity && intent.CashDueCents > 0 && intent.PaymentIntentID != nil {
		// Cash already captured for capacity we cannot deliver; refund it.
		refundID, refundErr := s.refundPayment(ctx, *intent.PaymentIntentID)
		if refundErr != nil {
			s.warn(ctx, intent.ID, "refund for capacity conflict failed", refundErr)
			reason := reasonCapacityExceeded
			_ = s.repo.SetStatus(ctx, intent.ID, enums.BookingIntentStatusFailed, &reason)
			_ = s.credits.ReleaseHold(ctx, intent.ID, reasonCapacityExceeded)
			return confirmErr
		}
		_ = s.repo.SetRefund(ctx, intent.ID, refundID)
		_ = s.credits.ReleaseHold(ctx, intent.ID, reasonCapacityExceeded)
		reason := reasonCapacityExceeded
		if err := s.repo.SetStatus(ctx, intent.ID, enums.BookingIntentStatusRefundedCapacity, &reason); err != nil {
			return err
		}
		s.info(ctx, intent.ID, "booking intent refunded on capacity conflict")
		return confirmErr
	}

	reason := confirmErr.Error()
	if isCapacity {
		reason = reasonCapacityExceeded
	}
	_ = s.credits.ReleaseHold(ctx, intent.ID, reason)
	if err := s.repo.SetStatus(ctx, intent.ID, enums.BookingIntentStatusFailed, &reason); err != nil {
		return err
	}
	return confirmErr
}

func (s *service) refundPayment(ctx context.Context, paymentIntentID string) (string, error) {
	if s.payments == nil {
		return "", fmt.Errorf("payment processor unavailable")
	}
	refund, err := s.payments.CreateRefund(ctx, &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	})
	if err != nil {
		return "", err
	}
	return refund.ID, nil
}

func (s *service) HandleCheckoutCompleted(ctx context.Context, sessionID, paymentIntentID string) error {
	intent, err := s.repo.GetByCheckoutSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if intent == nil {
		// Session for an intent we do not know; nothing to do.
		return nil
	}
	if intent.Status == enums.BookingIntentStatusConfirmed || intent.Status.IsTerminal() {
		return nil
	}

	if paymentIntentID != "" {
		if err := s.repo.SetPaymentIntent(ctx, intent.ID, paymentIntentID); err != nil {
			return err
		}
		intent.PaymentIntentID = &paymentIntentID
	}
	if err := s.repo.SetStatus(ctx, intent.ID, enums.BookingIntentStatusProcessing, nil); err != nil {
		return err
	}

	err = s.ConfirmAtomic(ctx, intent.ID)
	if appErr := apperrors.As(err); appErr != nil && appErr.Code() == apperrors.CodeCapacity {
		// Refund already handled inside the confirm failure path; the
		// webhook delivery itself succeeded.
		return nil
	}
	return err
}

func (s *service) HandleCheckoutExpired(ctx context.Context, sessionID string) error {
	intent, err := s.repo.GetByCheckoutSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if intent == nil || intent.Status == enums.BookingIntentStatusConfirmed || intent.Status.IsTerminal() {
		return nil
	}
	if err := s.credits.ReleaseHold(ctx, intent.ID, reasonPaymentExpired); err != nil {
		return err
	}
	reason := reasonPaymentExpired
	return s.repo.SetStatus(ctx, intent.ID, enums.BookingIntentStatusExpired, &reason)
}

func (s *service) HandlePaymentFailed(ctx context.Context, sessionID string) error {
	intent, err := s.repo.GetByCheckoutSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if intent == nil || intent.Status == enums.BookingIntentStatusConfirmed || intent.Status.IsTerminal() {
		return nil
	}
	if err := s.credits.ReleaseHold(ctx, intent.ID, reasonPaymentFailed); err != nil {
		return err
	}
	reason := reasonPaymentFailed
	return s.repo.SetStatus(ctx, intent.ID, enums.BookingIntentStatusFailed, &reason)
}

func (s *service) Reconcile(ctx context.Context) (int, error) {
	cutoff := s.clk.Now().Add(-s.cfg.StaleAfter)
	stale, err := s.repo.ListStale(ctx, []enums.BookingIntentStatus{
		enums.BookingIntentStatusCreated,
		enums.BookingIntentStatusAwaitingPayment,
		enums.BookingIntentStatusProcessing,
	}, cutoff)
	if err != nil {
		return 0, err
	}

	touched := 0
	for i := range stale {
		intent := &stale[i]
		if err := s.reconcileIntent(ctx, intent); err != nil {
			s.warn(ctx, intent.ID, "reconcile intent failed", err)
			continue
		}
		touched++
	}
	return touched, nil
}

func (s *service) reconcileIntent(ctx context.Context, intent *models.BookingIntent) error {
	ctx = s.withIntentLog(ctx, intent.ID)

	// Credits-only intents stuck before their synchronous confirm completed.
	if intent.CheckoutSessionID == nil || *intent.CheckoutSessionID == "" {
		if intent.CashDueCents == 0 {
			err := s.ConfirmAtomic(ctx, intent.ID)
			if apperrors.As(err) != nil {
				return nil // terminal state written by the failure path
			}
			return err
		}
		if err := s.credits.ReleaseHold(ctx, intent.ID, reasonPaymentExpired); err != nil {
			return err
		}
		reason := reasonPaymentExpired
		return s.repo.SetStatus(ctx, intent.ID, enums.BookingIntentStatusExpired, &reason)
	}

	if s.payments == nil {
		return fmt.Errorf("payment processor unavailable")
	}
	session, err := s.payments.GetCheckoutSession(ctx, *intent.CheckoutSessionID)
	if err != nil {
		return err
	}

	switch {
	case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		paymentIntentID := ""
		if session.PaymentIntent != nil {
			paymentIntentID = session.PaymentIntent.ID
		}
		return s.HandleCheckoutCompleted(ctx, *intent.CheckoutSessionID, paymentIntentID)
	case session.Status == stripe.CheckoutSessionStatusExpired:
		return s.HandleCheckoutExpired(ctx, *intent.CheckoutSessionID)
	default:
		// Still open inside the processor's own expiry window; leave it.
		return nil
	}
}

func (s *service) withIntentLog(ctx context.Context, intentID uuid.UUID) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithIntentID(ctx, intentID.String())
}

func (s *service) info(ctx context.Context, intentID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.withIntentLog(ctx, intentID), msg)
}

func (s *service) warn(ctx context.Context, intentID uuid.UUID, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.withIntentLog(ctx, intentID), fmt.Sprintf("%s: %v", msg, err))
}
