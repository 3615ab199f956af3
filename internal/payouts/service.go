package payouts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/internal/users"
	"github.com/admeshlabs/admesh-backend/pkg/config"
	"github.com/admeshlabs/admesh-backend/pkg/db"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

const (
	skipReasonBelowMinimum    = "below_minimum"
	skipReasonAccountNotReady = "payout_account_not_ready"
)

// TxRunner executes fn inside a datastore transaction. db.Client satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AccrualResult summarizes one weekly accrual run.
type AccrualResult struct {
	WeeksAccrued    int   `json:"weeks_accrued"`
	EarningsCreated int   `json:"earnings_created"`
	Promoted        int64 `json:"promoted"`
}

// BatchResult summarizes one monthly payout run.
type BatchResult struct {
	Batch *models.PayoutBatch `json:"batch"`
	Items []models.PayoutItem `json:"items"`
}

// Service owns earnings accrual and the monthly payout batch runner.
type Service interface {
	// RunWeeklyAccrual aggregates every unaccrued past week into earnings
	// rows and promotes rows past their hold period. Idempotent.
	RunWeeklyAccrual(ctx context.Context) (*AccrualResult, error)
	// RunMonthlyBatch pays eligible earnings grouped per publisher.
	// Idempotent by month: a completed batch short-circuits, a non-completed
	// one is resumed.
	RunMonthlyBatch(ctx context.Context) (*BatchResult, error)
	ListEarnings(ctx context.Context, userID uuid.UUID) ([]models.PublisherWeeklyEarning, error)
	Repo() Repository
}

type service struct {
	repo      Repository
	users     users.Repository
	transfers StripeTransferClient
	tx        TxRunner
	clk       clock.Clock
	cfg       config.PayoutConfig
	logg      *logger.Logger
}

// ServiceDeps bundles the collaborators the payout service needs.
type ServiceDeps struct {
	Repo      Repository
	Users     users.Repository
	Transfers StripeTransferClient
	Tx        TxRunner
	Clock     clock.Clock
	Config    config.PayoutConfig
	Logger    *logger.Logger
}

// NewService wires a payout service with the provided collaborators.
func NewService(deps ServiceDeps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("payouts repository required")
	case deps.Users == nil:
		return nil, fmt.Errorf("users repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock required")
	}
	cfg := deps.Config
	if cfg.MinimumCents <= 0 {
		cfg.MinimumCents = 2500
	}
	if cfg.RevenueShareBPS <= 0 {
		cfg.RevenueShareBPS = 7000
	}
	if cfg.HoldDays < 0 {
		cfg.HoldDays = 0
	}
	return &service{
		repo:      deps.Repo,
		users:     deps.Users,
		transfers: deps.Transfers,
		tx:        deps.Tx,
		clk:       deps.Clock,
		cfg:       cfg,
		logg:      deps.Logger,
	}, nil
}

func (s *service) Repo() Repository {
	return s.repo
}

func (s *service) ListEarnings(ctx context.Context, userID uuid.UUID) ([]models.PublisherWeeklyEarning, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.EarningsByUser(ctx, userID)
}

func (s *service) RunWeeklyAccrual(ctx context.Context) (*AccrualResult, error) {
	now := s.clk.Now()
	currentWeek := clock.WeekStart(now)

	weeks, err := s.repo.UnaccruedWeeks(ctx, currentWeek)
	if err != nil {
		return nil, err
	}

	result := &AccrualResult{}
	for _, weekStart := range weeks {
		created, err := s.accrueWeek(ctx, weekStart)
		if err != nil {
			return nil, err
		}
		if created >= 0 {
			result.WeeksAccrued++
			result.EarningsCreated += created
		}
	}

	promoted, err := s.repo.PromoteEligible(ctx, now)
	if err != nil {
		return nil, err
	}
	result.Promoted = promoted
	return result, nil
}

// accrueWeek aggregates one week inside a transaction. The accrual marker's
// unique week_start makes concurrent runs collapse to one winner; the loser
// reports created = -1.
func (s *service) accrueWeek(ctx context.Context, weekStart time.Time) (int, error) {
	created := 0
	duplicate := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		stats, err := repo.AggregateWeek(ctx, weekStart)
		if err != nil {
			return err
		}
		revenue, err := repo.WeekRevenueCents(ctx, weekStart)
		if err != nil {
			return err
		}

		totalImpressions := int64(0)
		for _, stat := range stats {
			totalImpressions += stat.Impressions
		}

		accrual := &models.WeeklyAccrual{
			WeekStart:        weekStart.UTC(),
			RevenuePoolCents: s.revenuePool(revenue),
			Impressions:      totalImpressions,
		}
		if err := repo.CreateAccrual(ctx, accrual); err != nil {
			if db.IsUniqueViolation(err, "") {
				duplicate = true
				return nil
			}
			return err
		}

		if totalImpressions == 0 || accrual.RevenuePoolCents == 0 {
			return nil
		}

		holdUntil := weekStart.UTC().AddDate(0, 0, 7+s.cfg.HoldDays)
		pool := decimal.NewFromInt(accrual.RevenuePoolCents)
		for _, stat := range stats {
			amount := pool.
				Mul(decimal.NewFromInt(stat.Impressions)).
				Div(decimal.NewFromInt(totalImpressions)).
				Round(0).IntPart()
			if amount <= 0 {
				continue
			}
			earning := &models.PublisherWeeklyEarning{
				UserID:        stat.UserID,
				WeekStart:     weekStart.UTC(),
				Impressions:   stat.Impressions,
				UniqueDevices: stat.UniqueDevices,
				AmountCents:   amount,
				Status:        enums.EarningStatusAccrued,
				HoldUntil:     holdUntil,
			}
			if err := repo.CreateEarning(ctx, earning); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if duplicate {
		return -1, nil
	}
	return created, nil
}

// revenuePool applies the publisher revenue share to what advertisers paid.
func (s *service) revenuePool(revenueCents int64) int64 {
	return decimal.NewFromInt(revenueCents).
		Mul(decimal.NewFromInt(int64(s.cfg.RevenueShareBPS))).
		Div(decimal.NewFromInt(10000)).
		Round(0).IntPart()
}

func (s *service) RunMonthlyBatch(ctx context.Context) (*BatchResult, error) {
	now := s.clk.Now()
	monthStart := clock.MonthStart(now)

	batch, err := s.repo.LatestBatch(ctx, monthStart)
	if err != nil {
		return nil, err
	}
	if batch != nil && batch.Status == enums.PayoutBatchStatusCompleted {
		items, err := s.repo.ListItems(ctx, batch.ID)
		if err != nil {
			return nil, err
		}
		return &BatchResult{Batch: batch, Items: items}, nil
	}
	if batch == nil {
		batch = &models.PayoutBatch{
			MonthStart: monthStart,
			Status:     enums.PayoutBatchStatusPending,
		}
		if err := s.repo.CreateBatch(ctx, batch); err != nil {
			return nil, err
		}
	}

	earnings, err := s.repo.EligibleEarnings(ctx)
	if err != nil {
		return nil, err
	}

	type userSlice struct {
		total int64
		ids   []uuid.UUID
	}
	byUser := map[uuid.UUID]*userSlice{}
	for i := range earnings {
		earning := &earnings[i]
		net := earning.ConvertibleCents()
		if net <= 0 {
			continue
		}
		slice := byUser[earning.UserID]
		if slice == nil {
			slice = &userSlice{}
			byUser[earning.UserID] = slice
		}
		slice.total += net
		slice.ids = append(slice.ids, earning.ID)
	}

	userIDs := make([]uuid.UUID, 0, len(byUser))
	for userID := range byUser {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool {
		return userIDs[i].String() < userIDs[j].String()
	})

	accounts, err := s.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	accountByID := make(map[uuid.UUID]*models.User, len(accounts))
	for i := range accounts {
		accountByID[accounts[i].ID] = &accounts[i]
	}

	var items []models.PayoutItem
	for _, userID := range userIDs {
		slice := byUser[userID]
		item, err := s.payUser(ctx, batch, userID, accountByID[userID], slice.total, slice.ids)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
		switch item.Status {
		case enums.PayoutItemStatusPaid:
			batch.PaidCount++
			batch.TotalPaidCents += item.AmountCents
		case enums.PayoutItemStatusSkipped:
			batch.SkippedCount++
		case enums.PayoutItemStatusFailed:
			batch.FailedCount++
		}
	}

	completedAt := now.UTC()
	batch.CompletedAt = &completedAt
	if batch.FailedCount > 0 {
		batch.Status = enums.PayoutBatchStatusFailed
	} else {
		batch.Status = enums.PayoutBatchStatusCompleted
	}
	if err := s.repo.FinalizeBatch(ctx, batch); err != nil {
		return nil, err
	}
	return &BatchResult{Batch: batch, Items: items}, nil
}

func (s *service) payUser(ctx context.Context, batch *models.PayoutBatch, userID uuid.UUID, account *models.User, amount int64, earningIDs []uuid.UUID) (*models.PayoutItem, error) {
	item := &models.PayoutItem{
		BatchID:     batch.ID,
		UserID:      userID,
		AmountCents: amount,
	}

	switch {
	case amount < s.cfg.MinimumCents:
		reason := skipReasonBelowMinimum
		item.Status = enums.PayoutItemStatusSkipped
		item.Reason = &reason
	case account == nil || !account.PayoutsEnabled ||
		account.StripeAccountID == nil || *account.StripeAccountID == "":
		reason := skipReasonAccountNotReady
		item.Status = enums.PayoutItemStatusSkipped
		item.Reason = &reason
	default:
		transferID, err := s.transfer(ctx, batch, userID, *account.StripeAccountID, amount)
		if err != nil {
			// A failed transfer never halts the batch.
			reason := err.Error()
			item.Status = enums.PayoutItemStatusFailed
			item.Reason = &reason
			s.warn(ctx, "payout transfer failed", err)
		} else {
			item.Status = enums.PayoutItemStatusPaid
			item.TransferID = &transferID
		}
	}

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	if item.Status == enums.PayoutItemStatusPaid {
		if err := s.repo.MarkEarningsPaid(ctx, earningIDs, item.ID); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (s *service) transfer(ctx context.Context, batch *models.PayoutBatch, userID uuid.UUID, accountID string, amount int64) (string, error) {
	if s.transfers == nil {
		return "", fmt.Errorf("payment processor unavailable")
	}
	result, err := s.transfers.CreateTransfer(ctx, &stripe.TransferParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(accountID),
		Metadata: map[string]string{
			"payout_batch_id": batch.ID.String(),
			"user_id":         userID.String(),
		},
	})
	if err != nil {
		return "", err
	}
	return result.ID, nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(ctx, fmt.Sprintf("%s: %v", msg, err))
}
