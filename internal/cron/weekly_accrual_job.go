package cron

import (
	"context"
	"fmt"

	"github.com/admeshlabs/admesh-backend/internal/payouts"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

// WeeklyAccrualJobParams configures the earnings accrual job.
type WeeklyAccrualJobParams struct {
	Logger  *logger.Logger
	Payouts accrualRunner
}

type accrualRunner interface {
	RunWeeklyAccrual(ctx context.Context) (*payouts.AccrualResult, error)
}

// NewWeeklyAccrualJob builds the job that accrues publisher earnings for
// completed weeks and promotes earnings past their hold window.
func NewWeeklyAccrualJob(params WeeklyAccrualJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payouts service required")
	}
	return &weeklyAccrualJob{
		logg:    params.Logger,
		payouts: params.Payouts,
	}, nil
}

type weeklyAccrualJob struct {
	logg    *logger.Logger
	payouts accrualRunner
}

func (j *weeklyAccrualJob) Name() string { return "weekly-accrual" }

func (j *weeklyAccrualJob) Run(ctx context.Context) error {
	result, err := j.payouts.RunWeeklyAccrual(ctx)
	if err != nil {
		return fmt.Errorf("run weekly accrual: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"weeks_accrued":    result.WeeksAccrued,
		"earnings_created": result.EarningsCreated,
		"promoted":         result.Promoted,
	})
	j.logg.Info(logCtx, "weekly accrual complete")
	return nil
}
