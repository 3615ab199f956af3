package credits

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
	apperrors "github.com/admeshlabs/admesh-backend/pkg/errors"
)

// TxRunner executes fn inside a datastore transaction. db.Client satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BalanceSummary reports the derived balances for one user.
type BalanceSummary struct {
	BalanceCents   int64 `json:"balance_cents"`
	HeldCents      int64 `json:"held_cents"`
	SpendableCents int64 `json:"spendable_cents"`
}

// ConversionResult reports what a cash-to-credit conversion produced.
type ConversionResult struct {
	ConvertedCents int64 `json:"converted_cents"`
	BonusCents     int64 `json:"bonus_cents"`
	GrantedCents   int64 `json:"granted_cents"`
}

// Service is the credit ledger and hold manager.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID) (*BalanceSummary, error)
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error)
	Grant(ctx context.Context, userID uuid.UUID, amountCents int64, metadata json.RawMessage) (*models.CreditLedgerEntry, error)
	// CreateHold reserves spendable balance against an intent. No-op when
	// amountCents <= 0.
	CreateHold(ctx context.Context, userID, intentID uuid.UUID, amountCents int64) (*models.CreditHold, error)
	// CaptureHold debits the held amount. Idempotent: absent or non-held
	// holds are a no-op.
	CaptureHold(ctx context.Context, intentID uuid.UUID) error
	// CaptureHoldTx is CaptureHold running inside an existing transaction.
	CaptureHoldTx(ctx context.Context, tx *gorm.DB, intentID uuid.UUID) error
	// ReleaseHold transitions held -> released, recording the reason.
	ReleaseHold(ctx context.Context, intentID uuid.UUID, reason string) error
	// ConvertEarnings turns publisher earnings into ad credits with a 10%
	// bonus, consuming earnings rows oldest week first.
	ConvertEarnings(ctx context.Context, userID uuid.UUID, amountCents int64) (*ConversionResult, error)
	Repo() Repository
}

type service struct {
	repo Repository
	tx   TxRunner
}

// NewService wires a credits service with the provided repository and
// transaction runner.
func NewService(repo Repository, tx TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("credits repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// BonusCents computes the 10% conversion bonus with half-up rounding.
func BonusCents(amountCents int64) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromFloat(0.1)).
		Round(0).
		IntPart()
}

func (s *service) Repo() Repository {
	return s.repo
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceSummary, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	balance, err := s.repo.SumLedger(ctx, userID)
	if err != nil {
		return nil, err
	}
	held, err := s.repo.SumHeld(ctx, userID)
	if err != nil {
		return nil, err
	}
	spendable := balance - held
	if spendable < 0 {
		spendable = 0
	}
	return &BalanceSummary{
		BalanceCents:   balance,
		HeldCents:      held,
		SpendableCents: spendable,
	}, nil
}

func (s *service) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListEntries(ctx, userID, limit)
}

func (s *service) Grant(ctx context.Context, userID uuid.UUID, amountCents int64, metadata json.RawMessage) (*models.CreditLedgerEntry, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if amountCents <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "grant amount must be positive")
	}
	entry := &models.CreditLedgerEntry{
		UserID:      userID,
		Type:        enums.CreditEntryTypePromoGrant,
		AmountCents: amountCents,
		Metadata:    metadata,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) CreateHold(ctx context.Context, userID, intentID uuid.UUID, amountCents int64) (*models.CreditHold, error) {
	if amountCents <= 0 {
		return nil, nil
	}
	if userID == uuid.Nil || intentID == uuid.Nil {
		return nil, fmt.Errorf("user id and intent id are required")
	}
	hold := &models.CreditHold{
		UserID:          userID,
		BookingIntentID: intentID,
		AmountCents:     amountCents,
		Status:          enums.CreditHoldStatusHeld,
	}
	if err := s.repo.CreateHold(ctx, hold); err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *service) CaptureHold(ctx context.Context, intentID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.CaptureHoldTx(ctx, tx, intentID)
	})
}

func (s *service) CaptureHoldTx(ctx context.Context, tx *gorm.DB, intentID uuid.UUID) error {
	if intentID == uuid.Nil {
		return fmt.Errorf("intent id is required")
	}
	repo := s.repo.WithTx(tx)
	hold, err := repo.GetHoldByIntentLocked(ctx, intentID)
	if err != nil {
		return err
	}
	if hold == nil || hold.Status != enums.CreditHoldStatusHeld {
		return nil
	}
	ref := intentID
	entry := &models.CreditLedgerEntry{
		UserID:      hold.UserID,
		Type:        enums.CreditEntryTypeBookingSpend,
		AmountCents: -hold.AmountCents,
		SourceRef:   &ref,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return err
	}
	return repo.UpdateHold(ctx, hold.ID, enums.CreditHoldStatusCaptured, nil)
}

func (s *service) ReleaseHold(ctx context.Context, intentID uuid.UUID, reason string) error {
	if intentID == uuid.Nil {
		return fmt.Errorf("intent id is required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		hold, err := repo.GetHoldByIntentLocked(ctx, intentID)
		if err != nil {
			return err
		}
		if hold == nil || hold.Status != enums.CreditHoldStatusHeld {
			return nil
		}
		return repo.UpdateHold(ctx, hold.ID, enums.CreditHoldStatusReleased, &reason)
	})
}

func (s *service) ConvertEarnings(ctx context.Context, userID uuid.UUID, amountCents int64) (*ConversionResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if amountCents <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "conversion amount must be positive")
	}

	var result *ConversionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		earnings, err := repo.ConvertibleEarnings(ctx, userID)
		if err != nil {
			return err
		}

		remaining := amountCents
		for _, earning := range earnings {
			if remaining == 0 {
				break
			}
			take := earning.ConvertibleCents()
			if take > remaining {
				take = remaining
			}
			if take <= 0 {
				continue
			}
			if err := repo.AddConvertedCents(ctx, earning.ID, take); err != nil {
				return err
			}
			remaining -= take
		}
		if remaining > 0 {
			return apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("only %d cents of earnings are convertible", amountCents-remaining))
		}

		bonus := BonusCents(amountCents)
		debit := &models.CreditLedgerEntry{
			UserID:      userID,
			Type:        enums.CreditEntryTypeCashConversionDebit,
			AmountCents: -amountCents,
		}
		if err := repo.CreateEntry(ctx, debit); err != nil {
			return err
		}
		credit := &models.CreditLedgerEntry{
			UserID:      userID,
			Type:        enums.CreditEntryTypeCashConversionBonus,
			AmountCents: amountCents + bonus,
		}
		if err := repo.CreateEntry(ctx, credit); err != nil {
			return err
		}

		result = &ConversionResult{
			ConvertedCents: amountCents,
			BonusCents:     bonus,
			GrantedCents:   amountCents + bonus,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
