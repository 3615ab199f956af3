package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/admeshlabs/admesh-backend/internal/booking"
	"github.com/admeshlabs/admesh-backend/internal/campaigns"
	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/internal/credits"
	"github.com/admeshlabs/admesh-backend/internal/cron"
	"github.com/admeshlabs/admesh-backend/internal/payouts"
	"github.com/admeshlabs/admesh-backend/internal/slots"
	"github.com/admeshlabs/admesh-backend/internal/users"
	"github.com/admeshlabs/admesh-backend/pkg/config"
	"github.com/admeshlabs/admesh-backend/pkg/db"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
	"github.com/admeshlabs/admesh-backend/pkg/metrics"
	"github.com/admeshlabs/admesh-backend/pkg/migrate"
	"github.com/admeshlabs/admesh-backend/pkg/redis"
	"github.com/admeshlabs/admesh-backend/pkg/stripe"
)

const lockKeyFormat = "am:cron-worker:lock:%s"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe", err)

	clk := clock.System()
	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)

	slotsSvc, err := slots.NewService(slots.NewRepository(gormDB), clk, cfg.Slots)
	requireResource(ctx, logg, "slots service", err)
	campaignsSvc, err := campaigns.NewService(campaigns.NewRepository(gormDB))
	requireResource(ctx, logg, "campaigns service", err)
	creditsSvc, err := credits.NewService(credits.NewRepository(gormDB), dbClient)
	requireResource(ctx, logg, "credits service", err)

	bookingSvc, err := booking.NewService(booking.ServiceDeps{
		Repo:       booking.NewRepository(gormDB),
		SlotsRepo:  slotsSvc.Repo(),
		SlotsSvc:   slotsSvc,
		Campaigns:  campaignsSvc.Repo(),
		Users:      usersRepo,
		Credits:    creditsSvc,
		Payments:   booking.NewStripeClient(stripeClient),
		Tx:         dbClient,
		Clock:      clk,
		Logger:     logg,
		Config:     cfg.Booking,
		AppBaseURL: cfg.App.BaseURL,
	})
	requireResource(ctx, logg, "booking service", err)

	payoutsSvc, err := payouts.NewService(payouts.ServiceDeps{
		Repo:      payouts.NewRepository(gormDB),
		Users:     usersRepo,
		Transfers: payouts.NewStripeClient(stripeClient),
		Tx:        dbClient,
		Clock:     clk,
		Config:    cfg.Payouts,
		Logger:    logg,
	})
	requireResource(ctx, logg, "payouts service", err)

	reconcileJob, err := cron.NewReconcileIntentsJob(cron.ReconcileIntentsJobParams{
		Logger:  logg,
		Booking: bookingSvc,
	})
	requireResource(ctx, logg, "reconcile intents job", err)
	accrualJob, err := cron.NewWeeklyAccrualJob(cron.WeeklyAccrualJobParams{
		Logger:  logg,
		Payouts: payoutsSvc,
	})
	requireResource(ctx, logg, "weekly accrual job", err)
	payoutJob, err := cron.NewMonthlyPayoutJob(cron.MonthlyPayoutJobParams{
		Logger:  logg,
		Payouts: payoutsSvc,
	})
	requireResource(ctx, logg, "monthly payout job", err)

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	requireResource(ctx, logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob, accrualJob, payoutJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Booking.StaleAfter,
	})
	requireResource(ctx, logg, "cron service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
