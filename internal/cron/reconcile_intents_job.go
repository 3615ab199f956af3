package cron

import (
	"context"
	"fmt"

	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

// ReconcileIntentsJobParams configures the stale-intent sweep job.
type ReconcileIntentsJobParams struct {
	Logger  *logger.Logger
	Booking intentReconciler
}

type intentReconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// NewReconcileIntentsJob builds the job that resolves booking intents
// stuck in a pre-terminal state past the staleness cutoff.
func NewReconcileIntentsJob(params ReconcileIntentsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Booking == nil {
		return nil, fmt.Errorf("booking service required")
	}
	return &reconcileIntentsJob{
		logg:    params.Logger,
		booking: params.Booking,
	}, nil
}

type reconcileIntentsJob struct {
	logg    *logger.Logger
	booking intentReconciler
}

func (j *reconcileIntentsJob) Name() string { return "reconcile-intents" }

func (j *reconcileIntentsJob) Run(ctx context.Context) error {
	resolved, err := j.booking.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile booking intents: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "intents_resolved", resolved)
	j.logg.Info(logCtx, "intent reconcile complete")
	return nil
}
