package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/admeshlabs/admesh-backend/api/routes"
	"github.com/admeshlabs/admesh-backend/internal/adserve"
	"github.com/admeshlabs/admesh-backend/internal/analytics"
	"github.com/admeshlabs/admesh-backend/internal/apps"
	"github.com/admeshlabs/admesh-backend/internal/booking"
	"github.com/admeshlabs/admesh-backend/internal/campaigns"
	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/internal/credits"
	"github.com/admeshlabs/admesh-backend/internal/payouts"
	"github.com/admeshlabs/admesh-backend/internal/slots"
	"github.com/admeshlabs/admesh-backend/internal/users"
	stripewebhook "github.com/admeshlabs/admesh-backend/internal/webhooks/stripe"
	"github.com/admeshlabs/admesh-backend/pkg/config"
	"github.com/admeshlabs/admesh-backend/pkg/db"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
	"github.com/admeshlabs/admesh-backend/pkg/metrics"
	"github.com/admeshlabs/admesh-backend/pkg/migrate"
	"github.com/admeshlabs/admesh-backend/pkg/pubsub"
	"github.com/admeshlabs/admesh-backend/pkg/redis"
	"github.com/admeshlabs/admesh-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	var publisher adserve.EventPublisher
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		publisher, err = analytics.NewPublisher(pubsubClient.AdEventsPublisher())
		if err != nil {
			logg.Error(context.Background(), "failed to create analytics publisher", err)
			os.Exit(1)
		}
	}

	clk := clock.System()
	gormDB := dbClient.DB()

	slotsSvc, err := slots.NewService(slots.NewRepository(gormDB), clk, cfg.Slots)
	if err != nil {
		fatal(logg, "failed to create slots service", err)
	}
	appsSvc, err := apps.NewService(apps.NewRepository(gormDB), clk)
	if err != nil {
		fatal(logg, "failed to create apps service", err)
	}
	campaignsSvc, err := campaigns.NewService(campaigns.NewRepository(gormDB))
	if err != nil {
		fatal(logg, "failed to create campaigns service", err)
	}
	creditsSvc, err := credits.NewService(credits.NewRepository(gormDB), dbClient)
	if err != nil {
		fatal(logg, "failed to create credits service", err)
	}
	usersRepo := users.NewRepository(gormDB)
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
	if err != nil {
		fatal(logg, "failed to create booking service", err)
	}
	payoutsSvc, err := payouts.NewService(payouts.ServiceDeps{
		Repo:      payouts.NewRepository(gormDB),
		Users:     usersRepo,
		Transfers: payouts.NewStripeClient(stripeClient),
		Tx:        dbClient,
		Clock:     clk,
		Config:    cfg.Payouts,
		Logger:    logg,
	})
	if err != nil {
		fatal(logg, "failed to create payouts service", err)
	}
	adserveSvc, err := adserve.NewService(adserve.ServiceDeps{
		Repo:      adserve.NewRepository(gormDB),
		Campaigns: campaignsSvc.Repo(),
		Apps:      appsSvc.Repo(),
		Clock:     clk,
		Config:    cfg.Serving,
		Metrics:   metrics.NewServingMetrics(prometheus.DefaultRegisterer),
		Publisher: publisher,
		Logger:    logg,
	})
	if err != nil {
		fatal(logg, "failed to create serving service", err)
	}
	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Repo:    stripewebhook.NewRepository(gormDB),
		Booking: bookingSvc,
	})
	if err != nil {
		fatal(logg, "failed to create webhook service", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterDeps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Slots:         slotsSvc,
			Booking:       bookingSvc,
			Campaigns:     campaignsSvc,
			Apps:          appsSvc,
			Credits:       creditsSvc,
			Payouts:       payoutsSvc,
			AdServe:       adserveSvc,
			StripeClient:  stripeClient,
			StripeWebhook: webhookSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
