package slots

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/pkg/config"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	apperrors "github.com/admeshlabs/admesh-backend/pkg/errors"
)

type fakeRepository struct {
	slots      map[time.Time]*models.WeeklySlot
	purchased  map[uuid.UUID]int
	advertiser map[uuid.UUID]map[uuid.UUID]int
	created    int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		slots:      map[time.Time]*models.WeeklySlot{},
		purchased:  map[uuid.UUID]int{},
		advertiser: map[uuid.UUID]map[uuid.UUID]int{},
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) GetByWeekStart(_ context.Context, weekStart time.Time) (*models.WeeklySlot, error) {
	return f.slots[weekStart.UTC()], nil
}

func (f *fakeRepository) GetByID(_ context.Context, id uuid.UUID) (*models.WeeklySlot, error) {
	for _, slot := range f.slots {
		if slot.ID == id {
			return slot, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) Create(_ context.Context, slot *models.WeeklySlot) error {
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	f.slots[slot.WeekStart.UTC()] = slot
	f.created++
	return nil
}

func (f *fakeRepository) PurchasedPercentage(_ context.Context, slotID uuid.UUID) (int, error) {
	return f.purchased[slotID], nil
}

func (f *fakeRepository) AdvertiserPercentage(_ context.Context, slotID, userID uuid.UUID) (int, error) {
	return f.advertiser[slotID][userID], nil
}

func (f *fakeRepository) ActivePurchases(_ context.Context, _ uuid.UUID) ([]models.SlotPurchase, error) {
	return nil, nil
}

func (f *fakeRepository) CreatePurchase(_ context.Context, _ *models.SlotPurchase) error {
	return nil
}

func (f *fakeRepository) CancelPurchase(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

func newTestService(t *testing.T, repo Repository, now time.Time) Service {
	t.Helper()
	svc, err := NewService(repo, clock.Fixed(now), config.SlotsConfig{
		BasePriceCents: 100000,
		UsersEstimate:  50000,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestQuotePriceRounding(t *testing.T) {
	cases := []struct {
		base       int64
		percentage int
		want       int64
	}{
		{100000, 10, 10000},
		{100000, 40, 40000},
		{99999, 1, 1000},  // 999.99 rounds up
		{33333, 3, 1000},  // 999.99 rounds up
		{12345, 7, 864},   // 864.15 rounds down
		{1, 1, 0},         // 0.01 rounds down
	}
	for _, tc := range cases {
		if got := QuotePrice(tc.base, tc.percentage); got != tc.want {
			t.Fatalf("QuotePrice(%d, %d) = %d, want %d", tc.base, tc.percentage, got, tc.want)
		}
	}
}

func TestNextPurchasableWeekLazyCreate(t *testing.T) {
	repo := newFakeRepository()
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) // Wednesday
	svc := newTestService(t, repo, now)

	avail, err := svc.NextPurchasableWeek(context.Background())
	if err != nil {
		t.Fatalf("NextPurchasableWeek error: %v", err)
	}
	wantWeek := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	if !avail.WeekStart.Equal(wantWeek) {
		t.Fatalf("expected week start %v, got %v", wantWeek, avail.WeekStart)
	}
	if repo.created != 1 {
		t.Fatalf("expected lazy slot create, created=%d", repo.created)
	}
	if avail.AvailablePercentage != 100 {
		t.Fatalf("fresh week should be fully available, got %d", avail.AvailablePercentage)
	}
	if !avail.Purchasable {
		t.Fatal("next week must be purchasable")
	}

	// Second lookup reuses the row.
	if _, err := svc.NextPurchasableWeek(context.Background()); err != nil {
		t.Fatalf("second lookup error: %v", err)
	}
	if repo.created != 1 {
		t.Fatalf("slot should be created once, created=%d", repo.created)
	}
}

func TestQuotePercentageScenario(t *testing.T) {
	repo := newFakeRepository()
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, now)

	quote, err := svc.QuotePercentage(context.Background(), uuid.New(), 10)
	if err != nil {
		t.Fatalf("QuotePercentage error: %v", err)
	}
	if quote.QuotedPriceCents != 10000 {
		t.Fatalf("expected 10%% of 100000 = 10000, got %d", quote.QuotedPriceCents)
	}
}

func TestQuotePercentageBounds(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))

	for _, pct := range []int{0, -1, 41, 100} {
		_, err := svc.QuotePercentage(context.Background(), uuid.New(), pct)
		if err == nil {
			t.Fatalf("expected validation error for %d%%", pct)
		}
		if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeValidation {
			t.Fatalf("expected validation code for %d%%, got %v", pct, err)
		}
	}
}

func TestQuotePercentageCapacityExceeded(t *testing.T) {
	repo := newFakeRepository()
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, now)

	// Seed the slot then mark 95% as sold.
	avail, err := svc.NextPurchasableWeek(context.Background())
	if err != nil {
		t.Fatalf("seed week: %v", err)
	}
	repo.purchased[avail.SlotID] = 95

	_, err = svc.QuotePercentage(context.Background(), uuid.New(), 10)
	if err == nil {
		t.Fatal("expected capacity error")
	}
	if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeCapacity {
		t.Fatalf("expected capacity code, got %v", err)
	}
}

func TestQuotePercentageAdvertiserCap(t *testing.T) {
	repo := newFakeRepository()
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, now)

	avail, err := svc.NextPurchasableWeek(context.Background())
	if err != nil {
		t.Fatalf("seed week: %v", err)
	}
	userID := uuid.New()
	repo.advertiser[avail.SlotID] = map[uuid.UUID]int{userID: 35}

	_, err = svc.QuotePercentage(context.Background(), userID, 10)
	if err == nil {
		t.Fatal("expected advertiser cap error")
	}
	if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeCapacity {
		t.Fatalf("expected capacity code, got %v", err)
	}

	// 5% keeps them at the 40% cap exactly and should pass.
	if _, err := svc.QuotePercentage(context.Background(), userID, 5); err != nil {
		t.Fatalf("expected quote at exactly 40%% to succeed: %v", err)
	}
}

func TestUpcomingWeeksOnlyFirstPurchasable(t *testing.T) {
	repo := newFakeRepository()
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, now)

	weeks, err := svc.UpcomingWeeks(context.Background(), 3)
	if err != nil {
		t.Fatalf("UpcomingWeeks error: %v", err)
	}
	if len(weeks) != 3 {
		t.Fatalf("expected 3 weeks, got %d", len(weeks))
	}
	if !weeks[0].Purchasable {
		t.Fatal("first week must be purchasable")
	}
	for _, w := range weeks[1:] {
		if w.Purchasable {
			t.Fatalf("advisory week %v must not be purchasable", w.WeekStart)
		}
	}
	// Advisory weeks are not lazily created.
	if repo.created != 1 {
		t.Fatalf("only the purchasable week should be created, created=%d", repo.created)
	}
}

func TestUpcomingWeeksAdvisoryPriceBands(t *testing.T) {
	repo := newFakeRepository()
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, now)

	weeks, err := svc.UpcomingWeeks(context.Background(), 3)
	if err != nil {
		t.Fatalf("UpcomingWeeks error: %v", err)
	}
	if weeks[0].PriceBandLowCents != 0 || weeks[0].PriceBandHighCents != 0 {
		t.Fatalf("purchasable week must carry a firm price, got band [%d, %d]",
			weeks[0].PriceBandLowCents, weeks[0].PriceBandHighCents)
	}
	if weeks[1].PriceBandLowCents != 95000 || weeks[1].PriceBandHighCents != 105000 {
		t.Fatalf("week+1 band must be within 5%%, got [%d, %d]",
			weeks[1].PriceBandLowCents, weeks[1].PriceBandHighCents)
	}
	if weeks[2].PriceBandLowCents != 90000 || weeks[2].PriceBandHighCents != 110000 {
		t.Fatalf("week+2 band must be within 10%%, got [%d, %d]",
			weeks[2].PriceBandLowCents, weeks[2].PriceBandHighCents)
	}
}
