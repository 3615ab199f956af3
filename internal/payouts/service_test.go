package payouts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/internal/users"
	"github.com/admeshlabs/admesh-backend/pkg/config"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepo struct {
	stats     map[time.Time][]OwnerWeekStats
	revenue   map[time.Time]int64
	accruals  map[time.Time]*models.WeeklyAccrual
	earnings  []*models.PublisherWeeklyEarning
	batches   []*models.PayoutBatch
	items     []*models.PayoutItem
	finalized []*models.PayoutBatch
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		stats:    map[time.Time][]OwnerWeekStats{},
		revenue:  map[time.Time]int64{},
		accruals: map[time.Time]*models.WeeklyAccrual{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) UnaccruedWeeks(_ context.Context, before time.Time) ([]time.Time, error) {
	var weeks []time.Time
	for week := range f.stats {
		if week.Before(before) && f.accruals[week] == nil {
			weeks = append(weeks, week)
		}
	}
	return weeks, nil
}

func (f *fakeRepo) AggregateWeek(_ context.Context, weekStart time.Time) ([]OwnerWeekStats, error) {
	return f.stats[weekStart.UTC()], nil
}

func (f *fakeRepo) WeekRevenueCents(_ context.Context, weekStart time.Time) (int64, error) {
	return f.revenue[weekStart.UTC()], nil
}

func (f *fakeRepo) CreateAccrual(_ context.Context, accrual *models.WeeklyAccrual) error {
	if f.accruals[accrual.WeekStart] != nil {
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	if accrual.ID == uuid.Nil {
		accrual.ID = uuid.New()
	}
	f.accruals[accrual.WeekStart] = accrual
	return nil
}

func (f *fakeRepo) CreateEarning(_ context.Context, earning *models.PublisherWeeklyEarning) error {
	if earning.ID == uuid.Nil {
		earning.ID = uuid.New()
	}
	f.earnings = append(f.earnings, earning)
	return nil
}

func (f *fakeRepo) PromoteEligible(_ context.Context, now time.Time) (int64, error) {
	promoted := int64(0)
	for _, earning := range f.earnings {
		if earning.Status == enums.EarningStatusAccrued && !earning.HoldUntil.After(now) {
			earning.Status = enums.EarningStatusEligible
			promoted++
		}
	}
	return promoted, nil
}

func (f *fakeRepo) EligibleEarnings(context.Context) ([]models.PublisherWeeklyEarning, error) {
	var out []models.PublisherWeeklyEarning
	for _, earning := range f.earnings {
		if earning.Status == enums.EarningStatusEligible {
			out = append(out, *earning)
		}
	}
	return out, nil
}

func (f *fakeRepo) EarningsByUser(_ context.Context, userID uuid.UUID) ([]models.PublisherWeeklyEarning, error) {
	var out []models.PublisherWeeklyEarning
	for _, earning := range f.earnings {
		if earning.UserID == userID {
			out = append(out, *earning)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkEarningsPaid(_ context.Context, ids []uuid.UUID, payoutItemID uuid.UUID) error {
	for _, earning := range f.earnings {
		for _, id := range ids {
			if earning.ID == id {
				earning.Status = enums.EarningStatusPaid
				itemID := payoutItemID
				earning.PaidPayoutItemID = &itemID
			}
		}
	}
	return nil
}

func (f *fakeRepo) LatestBatch(_ context.Context, monthStart time.Time) (*models.PayoutBatch, error) {
	for i := len(f.batches) - 1; i >= 0; i-- {
		if f.batches[i].MonthStart.Equal(monthStart.UTC()) {
			cp := *f.batches[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreateBatch(_ context.Context, batch *models.PayoutBatch) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	batch.MonthStart = batch.MonthStart.UTC()
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeRepo) CreateItem(_ context.Context, item *models.PayoutItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	f.items = append(f.items, item)
	return nil
}

func (f *fakeRepo) ListItems(_ context.Context, batchID uuid.UUID) ([]models.PayoutItem, error) {
	var out []models.PayoutItem
	for _, item := range f.items {
		if item.BatchID == batchID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeRepo) FinalizeBatch(_ context.Context, batch *models.PayoutBatch) error {
	for i, stored := range f.batches {
		if stored.ID == batch.ID {
			cp := *batch
			f.batches[i] = &cp
		}
	}
	f.finalized = append(f.finalized, batch)
	return nil
}

type fakeUsersRepo struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUsersRepo) WithTx(tx *gorm.DB) users.Repository { return f }
func (f *fakeUsersRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}
func (f *fakeUsersRepo) GetByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, nil
}
func (f *fakeUsersRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u := f.users[id]; u != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}
func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) error {
	f.users[u.ID] = u
	return nil
}
func (f *fakeUsersRepo) SetStripeCustomer(_ context.Context, _ uuid.UUID, _ string) error { return nil }
func (f *fakeUsersRepo) SetStripeAccount(_ context.Context, _ uuid.UUID, _ string, _ bool) error {
	return nil
}

type fakeTransfers struct {
	transfers []*stripe.TransferParams
	failFor   map[string]bool
}

func (f *fakeTransfers) CreateTransfer(_ context.Context, params *stripe.TransferParams) (*stripe.Transfer, error) {
	if f.failFor[*params.Destination] {
		return nil, fmt.Errorf("account cannot receive transfers")
	}
	f.transfers = append(f.transfers, params)
	return &stripe.Transfer{ID: fmt.Sprintf("tr_%d", len(f.transfers))}, nil
}

func newTestService(t *testing.T, repo *fakeRepo, usersRepo *fakeUsersRepo, transfers *fakeTransfers, now time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceDeps{
		Repo:      repo,
		Users:     usersRepo,
		Transfers: transfers,
		Tx:        fakeTxRunner{},
		Clock:     clock.Fixed(now),
		Config: config.PayoutConfig{
			MinimumCents:    2500,
			HoldDays:        7,
			RevenueShareBPS: 7000,
		},
	})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func payoutReadyUser() *models.User {
	accountID := "acct_" + uuid.NewString()[:8]
	return &models.User{
		ID:              uuid.New(),
		Email:           "pub@example.com",
		StripeAccountID: &accountID,
		PayoutsEnabled:  true,
	}
}

func TestWeeklyAccrualSplitsPoolByImpressions(t *testing.T) {
	now := time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)
	lastWeek := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	ownerA, ownerB := uuid.New(), uuid.New()
	repo := newFakeRepo()
	repo.stats[lastWeek] = []OwnerWeekStats{
		{UserID: ownerA, Impressions: 3000, UniqueDevices: 900},
		{UserID: ownerB, Impressions: 1000, UniqueDevices: 400},
	}
	repo.revenue[lastWeek] = 100000

	svc := newTestService(t, repo, &fakeUsersRepo{users: map[uuid.UUID]*models.User{}}, &fakeTransfers{}, now)

	result, err := svc.RunWeeklyAccrual(context.Background())
	if err != nil {
		t.Fatalf("RunWeeklyAccrual error: %v", err)
	}
	if result.WeeksAccrued != 1 || result.EarningsCreated != 2 {
		t.Fatalf("expected 1 week / 2 earnings, got %+v", result)
	}

	// 70% of 100000 split 3:1.
	byUser := map[uuid.UUID]int64{}
	for _, earning := range repo.earnings {
		byUser[earning.UserID] = earning.AmountCents
		if earning.Status != enums.EarningStatusAccrued {
			t.Fatalf("fresh earning must be accrued, got %s", earning.Status)
		}
		wantHold := lastWeek.AddDate(0, 0, 14)
		if !earning.HoldUntil.Equal(wantHold) {
			t.Fatalf("hold until %v, want %v", earning.HoldUntil, wantHold)
		}
	}
	if byUser[ownerA] != 52500 || byUser[ownerB] != 17500 {
		t.Fatalf("pro-rata split wrong: %v", byUser)
	}

	// Second run is a no-op: the accrual marker claims the week.
	again, err := svc.RunWeeklyAccrual(context.Background())
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}
	if again.WeeksAccrued != 0 || len(repo.earnings) != 2 {
		t.Fatalf("accrual must be idempotent, got %+v earnings=%d", again, len(repo.earnings))
	}
}

func TestWeeklyAccrualPromotesPastHold(t *testing.T) {
	now := time.Date(2026, 3, 20, 6, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	repo.earnings = append(repo.earnings,
		&models.PublisherWeeklyEarning{
			ID: uuid.New(), UserID: uuid.New(), AmountCents: 5000,
			Status: enums.EarningStatusAccrued, HoldUntil: now.AddDate(0, 0, -1),
		},
		&models.PublisherWeeklyEarning{
			ID: uuid.New(), UserID: uuid.New(), AmountCents: 4000,
			Status: enums.EarningStatusAccrued, HoldUntil: now.AddDate(0, 0, 3),
		},
	)

	svc := newTestService(t, repo, &fakeUsersRepo{users: map[uuid.UUID]*models.User{}}, &fakeTransfers{}, now)

	result, err := svc.RunWeeklyAccrual(context.Background())
	if err != nil {
		t.Fatalf("RunWeeklyAccrual error: %v", err)
	}
	if result.Promoted != 1 {
		t.Fatalf("expected 1 promotion, got %d", result.Promoted)
	}
	if repo.earnings[0].Status != enums.EarningStatusEligible {
		t.Fatal("earning past hold must be eligible")
	}
	if repo.earnings[1].Status != enums.EarningStatusAccrued {
		t.Fatal("earning inside hold must stay accrued")
	}
}

func TestMonthlyBatchOutcomes(t *testing.T) {
	now := time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC)
	week := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	paidUser := payoutReadyUser()
	smallUser := payoutReadyUser()
	notReady := &models.User{ID: uuid.New(), Email: "noacct@example.com"}
	failing := payoutReadyUser()

	repo := newFakeRepo()
	repo.earnings = append(repo.earnings,
		&models.PublisherWeeklyEarning{
			ID: uuid.New(), UserID: paidUser.ID, WeekStart: week,
			AmountCents: 5000, ConvertedCents: 2000,
			Status: enums.EarningStatusEligible,
		},
		&models.PublisherWeeklyEarning{
			ID: uuid.New(), UserID: smallUser.ID, WeekStart: week,
			AmountCents: 1000, Status: enums.EarningStatusEligible,
		},
		&models.PublisherWeeklyEarning{
			ID: uuid.New(), UserID: notReady.ID, WeekStart: week,
			AmountCents: 4000, Status: enums.EarningStatusEligible,
		},
		&models.PublisherWeeklyEarning{
			ID: uuid.New(), UserID: failing.ID, WeekStart: week,
			AmountCents: 6000, Status: enums.EarningStatusEligible,
		},
	)

	usersRepo := &fakeUsersRepo{users: map[uuid.UUID]*models.User{
		paidUser.ID:  paidUser,
		smallUser.ID: smallUser,
		notReady.ID:  notReady,
		failing.ID:   failing,
	}}
	transfers := &fakeTransfers{failFor: map[string]bool{*failing.StripeAccountID: true}}

	svc := newTestService(t, repo, usersRepo, transfers, now)

	result, err := svc.RunMonthlyBatch(context.Background())
	if err != nil {
		t.Fatalf("RunMonthlyBatch error: %v", err)
	}

	batch := result.Batch
	if batch.Status != enums.PayoutBatchStatusFailed {
		t.Fatalf("a failed transfer must fail the batch, got %s", batch.Status)
	}
	if batch.PaidCount != 1 || batch.SkippedCount != 2 || batch.FailedCount != 1 {
		t.Fatalf("counts wrong: %+v", batch)
	}
	// Net of converted: 5000 - 2000.
	if batch.TotalPaidCents != 3000 {
		t.Fatalf("expected 3000 paid, got %d", batch.TotalPaidCents)
	}

	statusByUser := map[uuid.UUID]models.PayoutItem{}
	for _, item := range result.Items {
		statusByUser[item.UserID] = item
	}
	if got := statusByUser[paidUser.ID]; got.Status != enums.PayoutItemStatusPaid || got.TransferID == nil {
		t.Fatalf("paid item wrong: %+v", got)
	}
	if got := statusByUser[smallUser.ID]; got.Status != enums.PayoutItemStatusSkipped || *got.Reason != "below_minimum" {
		t.Fatalf("below-minimum item wrong: %+v", got)
	}
	if got := statusByUser[notReady.ID]; got.Status != enums.PayoutItemStatusSkipped || *got.Reason != "payout_account_not_ready" {
		t.Fatalf("not-ready item wrong: %+v", got)
	}
	if got := statusByUser[failing.ID]; got.Status != enums.PayoutItemStatusFailed || got.Reason == nil {
		t.Fatalf("failed item wrong: %+v", got)
	}

	// Only the paid user's earnings flip to paid.
	for _, earning := range repo.earnings {
		if earning.UserID == paidUser.ID && earning.Status != enums.EarningStatusPaid {
			t.Fatal("paid user's earnings must be marked paid")
		}
		if earning.UserID == failing.ID && earning.Status != enums.EarningStatusEligible {
			t.Fatal("failed user's earnings must stay eligible for the next run")
		}
	}
}

func TestMonthlyBatchIdempotentByMonth(t *testing.T) {
	now := time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC)
	week := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	user := payoutReadyUser()
	repo := newFakeRepo()
	repo.earnings = append(repo.earnings, &models.PublisherWeeklyEarning{
		ID: uuid.New(), UserID: user.ID, WeekStart: week,
		AmountCents: 5000, Status: enums.EarningStatusEligible,
	})

	usersRepo := &fakeUsersRepo{users: map[uuid.UUID]*models.User{user.ID: user}}
	transfers := &fakeTransfers{}
	svc := newTestService(t, repo, usersRepo, transfers, now)

	first, err := svc.RunMonthlyBatch(context.Background())
	if err != nil {
		t.Fatalf("first run error: %v", err)
	}
	if first.Batch.Status != enums.PayoutBatchStatusCompleted {
		t.Fatalf("expected completed batch, got %s", first.Batch.Status)
	}

	second, err := svc.RunMonthlyBatch(context.Background())
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}
	if second.Batch.ID != first.Batch.ID {
		t.Fatal("completed batch must be reused, not recreated")
	}
	if len(transfers.transfers) != 1 {
		t.Fatalf("re-running a completed month must not transfer again, got %d", len(transfers.transfers))
	}
}
