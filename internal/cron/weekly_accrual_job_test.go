package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/admeshlabs/admesh-backend/internal/payouts"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

type fakeAccrualRunner struct {
	result *payouts.AccrualResult
	err    error
	calls  int
}

func (f *fakeAccrualRunner) RunWeeklyAccrual(context.Context) (*payouts.AccrualResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestWeeklyAccrualJobRunsAccrual(t *testing.T) {
	runner := &fakeAccrualRunner{result: &payouts.AccrualResult{WeeksAccrued: 1, EarningsCreated: 4, Promoted: 2}}
	job, err := NewWeeklyAccrualJob(WeeklyAccrualJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: runner,
	})
	if err != nil {
		t.Fatalf("NewWeeklyAccrualJob: %v", err)
	}
	if job.Name() != "weekly-accrual" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one accrual run, got %d", runner.calls)
	}
}

func TestWeeklyAccrualJobPropagatesErrors(t *testing.T) {
	runner := &fakeAccrualRunner{err: errors.New("boom")}
	job, err := NewWeeklyAccrualJob(WeeklyAccrualJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: runner,
	})
	if err != nil {
		t.Fatalf("NewWeeklyAccrualJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
