package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/pkg/config"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	apperrors "github.com/admeshlabs/admesh-backend/pkg/errors"
)

const (
	// MinPercentage and MaxPercentage bound a single purchase request. The
	// per-advertiser cap equals MaxPercentage across all of their purchases
	// for a slot.
	MinPercentage = 1
	MaxPercentage = 40

	// SlotCapacity is the total sellable percentage per week.
	SlotCapacity = 100
)

// Availability describes the sellable state of one weekly slot. For weeks
// beyond the purchasable one the price is advisory, so a display band is
// attached instead of a firm figure.
type Availability struct {
	SlotID              uuid.UUID `json:"slot_id"`
	WeekStart           time.Time `json:"week_start"`
	BasePriceCents      int64     `json:"base_price_cents"`
	PriceBandLowCents   int64     `json:"price_band_low_cents,omitempty"`
	PriceBandHighCents  int64     `json:"price_band_high_cents,omitempty"`
	TotalUsersEstimate  int64     `json:"total_users_estimate"`
	PurchasedPercentage int       `json:"purchased_percentage"`
	AvailablePercentage int       `json:"available_percentage"`
	Purchasable         bool      `json:"purchasable"`
}

// Quote prices a requested share of one weekly slot.
type Quote struct {
	Availability
	Percentage       int   `json:"percentage"`
	QuotedPriceCents int64 `json:"quoted_price_cents"`
}

// Service is the capacity and pricing oracle for weekly inventory.
type Service interface {
	// NextPurchasableWeek resolves (and lazily creates) the next bookable
	// week's slot.
	NextPurchasableWeek(ctx context.Context) (*Availability, error)
	// UpcomingWeeks returns advisory availability for the next n weeks,
	// starting with the purchasable one.
	UpcomingWeeks(ctx context.Context, n int) ([]Availability, error)
	// QuotePercentage prices a share of the next purchasable week.
	QuotePercentage(ctx context.Context, userID uuid.UUID, percentage int) (*Quote, error)
	// AvailabilityFor reports the sellable state of an existing slot.
	AvailabilityFor(ctx context.Context, slotID uuid.UUID) (*Availability, error)
	Repo() Repository
}

type service struct {
	repo Repository
	clk  clock.Clock
	cfg  config.SlotsConfig
}

// NewService wires a slots service with the provided repository and clock.
func NewService(repo Repository, clk clock.Clock, cfg config.SlotsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("slots repository required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock required")
	}
	if cfg.BasePriceCents <= 0 {
		return nil, fmt.Errorf("slot base price must be positive")
	}
	return &service{repo: repo, clk: clk, cfg: cfg}, nil
}

// QuotePrice computes round(basePriceCents * percentage / 100) with half-up
// rounding on the cent.
func QuotePrice(basePriceCents int64, percentage int) int64 {
	price := decimal.NewFromInt(basePriceCents).
		Mul(decimal.NewFromInt(int64(percentage))).
		Div(decimal.NewFromInt(100))
	return price.Round(0).IntPart()
}

func (s *service) Repo() Repository {
	return s.repo
}

func (s *service) NextPurchasableWeek(ctx context.Context) (*Availability, error) {
	weekStart := clock.NextWeekStart(s.clk.Now())
	return s.availabilityForWeek(ctx, weekStart, true)
}

func (s *service) UpcomingWeeks(ctx context.Context, n int) ([]Availability, error) {
	if n <= 0 {
		n = 4
	}
	first := clock.NextWeekStart(s.clk.Now())
	out := make([]Availability, 0, n)
	for i := 0; i < n; i++ {
		weekStart := first.AddDate(0, 0, 7*i)
		avail, err := s.availabilityForWeek(ctx, weekStart, i == 0)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			avail.PriceBandLowCents, avail.PriceBandHighCents = priceBand(avail.BasePriceCents, i)
		}
		out = append(out, *avail)
	}
	return out, nil
}

// priceBand returns the advisory display range for a future week: the week
// after the purchasable one moves at most 5%, anything further at most 10%.
func priceBand(basePriceCents int64, weeksOut int) (int64, int64) {
	pct := int64(10)
	if weeksOut == 1 {
		pct = 5
	}
	base := decimal.NewFromInt(basePriceCents)
	spread := base.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100)).Round(0).IntPart()
	return basePriceCents - spread, basePriceCents + spread
}

func (s *service) QuotePercentage(ctx context.Context, userID uuid.UUID, percentage int) (*Quote, error) {
	if percentage < MinPercentage || percentage > MaxPercentage {
		return nil, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("percentage must be between %d and %d", MinPercentage, MaxPercentage))
	}

	avail, err := s.NextPurchasableWeek(ctx)
	if err != nil {
		return nil, err
	}

	if percentage > avail.AvailablePercentage {
		return nil, apperrors.New(apperrors.CodeCapacity,
			fmt.Sprintf("only %d%% of the week remains", avail.AvailablePercentage))
	}

	if userID != uuid.Nil {
		owned, err := s.repo.AdvertiserPercentage(ctx, avail.SlotID, userID)
		if err != nil {
			return nil, err
		}
		if owned+percentage > MaxPercentage {
			return nil, apperrors.New(apperrors.CodeCapacity,
				fmt.Sprintf("advertiser share capped at %d%% per week", MaxPercentage))
		}
	}

	return &Quote{
		Availability:     *avail,
		Percentage:       percentage,
		QuotedPriceCents: QuotePrice(avail.BasePriceCents, percentage),
	}, nil
}

func (s *service) AvailabilityFor(ctx context.Context, slotID uuid.UUID) (*Availability, error) {
	if slotID == uuid.Nil {
		return nil, fmt.Errorf("slot id is required")
	}
	slot, err := s.repo.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "slot not found")
	}
	return s.buildAvailability(ctx, slot)
}

func (s *service) availabilityForWeek(ctx context.Context, weekStart time.Time, create bool) (*Availability, error) {
	slot, err := s.repo.GetByWeekStart(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		if !create {
			return &Availability{
				WeekStart:           weekStart,
				BasePriceCents:      s.cfg.BasePriceCents,
				TotalUsersEstimate:  s.cfg.UsersEstimate,
				AvailablePercentage: SlotCapacity,
			}, nil
		}
		slot, err = s.createWeek(ctx, weekStart)
		if err != nil {
			return nil, err
		}
	}

	avail, err := s.buildAvailability(ctx, slot)
	if err != nil {
		return nil, err
	}
	avail.Purchasable = weekStart.Equal(clock.NextWeekStart(s.clk.Now()))
	return avail, nil
}

func (s *service) createWeek(ctx context.Context, weekStart time.Time) (*models.WeeklySlot, error) {
	slot := &models.WeeklySlot{
		WeekStart:          weekStart,
		BasePriceCents:     s.cfg.BasePriceCents,
		TotalUsersEstimate: s.cfg.UsersEstimate,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		// Another request may have created the row concurrently.
		existing, getErr := s.repo.GetByWeekStart(ctx, weekStart)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return slot, nil
}

func (s *service) buildAvailability(ctx context.Context, slot *models.WeeklySlot) (*Availability, error) {
	purchased, err := s.repo.PurchasedPercentage(ctx, slot.ID)
	if err != nil {
		return nil, err
	}
	available := SlotCapacity - purchased
	if available < 0 {
		available = 0
	}
	return &Availability{
		SlotID:              slot.ID,
		WeekStart:           slot.WeekStart,
		BasePriceCents:      slot.BasePriceCents,
		TotalUsersEstimate:  slot.TotalUsersEstimate,
		PurchasedPercentage: purchased,
		AvailablePercentage: available,
	}, nil
}
