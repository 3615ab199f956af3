package cron

import (
	"context"
	"fmt"

	"github.com/admeshlabs/admesh-backend/internal/payouts"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

// MonthlyPayoutJobParams configures the payout batch job.
type MonthlyPayoutJobParams struct {
	Logger  *logger.Logger
	Payouts payoutBatcher
}

type payoutBatcher interface {
	RunMonthlyBatch(ctx context.Context) (*payouts.BatchResult, error)
}

// NewMonthlyPayoutJob builds the job that drives the monthly payout batch.
// The underlying runner is idempotent per calendar month, so re-running
// inside the same month resumes or short-circuits as needed.
func NewMonthlyPayoutJob(params MonthlyPayoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payouts service required")
	}
	return &monthlyPayoutJob{
		logg:    params.Logger,
		payouts: params.Payouts,
	}, nil
}

type monthlyPayoutJob struct {
	logg    *logger.Logger
	payouts payoutBatcher
}

func (j *monthlyPayoutJob) Name() string { return "monthly-payout" }

func (j *monthlyPayoutJob) Run(ctx context.Context) error {
	result, err := j.payouts.RunMonthlyBatch(ctx)
	if err != nil {
		return fmt.Errorf("run monthly payout batch: %w", err)
	}
	batch := result.Batch
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"batch_id":         batch.ID,
		"month_start":      batch.MonthStart,
		"status":           batch.Status,
		"total_paid_cents": batch.TotalPaidCents,
		"paid_count":       batch.PaidCount,
		"skipped_count":    batch.SkippedCount,
		"failed_count":     batch.FailedCount,
	})
	j.logg.Info(logCtx, "monthly payout batch complete")
	return nil
}
