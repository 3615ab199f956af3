package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/admeshlabs/admesh-backend/internal/payouts"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

type fakePayoutBatcher struct {
	result *payouts.BatchResult
	err    error
	calls  int
}

func (f *fakePayoutBatcher) RunMonthlyBatch(context.Context) (*payouts.BatchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestMonthlyPayoutJobRunsBatch(t *testing.T) {
	batcher := &fakePayoutBatcher{result: &payouts.BatchResult{
		Batch: &models.PayoutBatch{Status: enums.PayoutBatchStatusCompleted, PaidCount: 2},
	}}
	job, err := NewMonthlyPayoutJob(MonthlyPayoutJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: batcher,
	})
	if err != nil {
		t.Fatalf("NewMonthlyPayoutJob: %v", err)
	}
	if job.Name() != "monthly-payout" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if batcher.calls != 1 {
		t.Fatalf("expected one batch run, got %d", batcher.calls)
	}
}

func TestMonthlyPayoutJobPropagatesErrors(t *testing.T) {
	batcher := &fakePayoutBatcher{err: errors.New("boom")}
	job, err := NewMonthlyPayoutJob(MonthlyPayoutJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: batcher,
	})
	if err != nil {
		t.Fatalf("NewMonthlyPayoutJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
