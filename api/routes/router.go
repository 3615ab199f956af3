package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/admeshlabs/admesh-backend/api/controllers"
	webhookcontrollers "github.com/admeshlabs/admesh-backend/api/controllers/webhooks"
	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/internal/adserve"
	"github.com/admeshlabs/admesh-backend/internal/apps"
	"github.com/admeshlabs/admesh-backend/internal/booking"
	"github.com/admeshlabs/admesh-backend/internal/campaigns"
	"github.com/admeshlabs/admesh-backend/internal/credits"
	"github.com/admeshlabs/admesh-backend/internal/payouts"
	"github.com/admeshlabs/admesh-backend/internal/slots"
	stripewebhook "github.com/admeshlabs/admesh-backend/internal/webhooks/stripe"
	"github.com/admeshlabs/admesh-backend/pkg/config"
	"github.com/admeshlabs/admesh-backend/pkg/db"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
	"github.com/admeshlabs/admesh-backend/pkg/redis"
	"github.com/admeshlabs/admesh-backend/pkg/stripe"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis redis.Pinger

	Slots     slots.Service
	Booking   booking.Service
	Campaigns campaigns.Service
	Apps      apps.Service
	Credits   credits.Service
	Payouts   payouts.Service
	AdServe   adserve.Service

	StripeClient  *stripe.Client
	StripeWebhook *stripewebhook.Service
}

func NewRouter(deps RouterDeps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, logg))
	})

	// SDK serving surface. Click redirects carry their own verification
	// token, so they stay unauthenticated.
	r.Get("/r/{adId}", controllers.ClickRedirect(deps.AdServe, logg))
	r.Group(func(r chi.Router) {
		r.Use(middleware.SDKAuth(deps.Apps, logg))
		r.Post("/v1/serve", controllers.Serve(deps.AdServe, logg))
		r.Post("/v1/impression", controllers.Impression(deps.AdServe, logg))
		r.Post("/v1/events/{kind}", controllers.Event(deps.AdServe, logg))
	})

	// Dashboard surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/slots", func(r chi.Router) {
			r.Get("/upcoming", controllers.SlotsUpcoming(deps.Slots, logg))
			r.Get("/quote", controllers.SlotsQuote(deps.Slots, logg))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", controllers.BookingCreate(deps.Booking, logg))
			r.Get("/", controllers.BookingList(deps.Booking, logg))
			r.Get("/{bookingId}", controllers.BookingDetail(deps.Booking, logg))
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", controllers.CampaignCreate(deps.Campaigns, logg))
			r.Get("/", controllers.CampaignList(deps.Campaigns, logg))
			r.Get("/{campaignId}", controllers.CampaignDetail(deps.Campaigns, logg))
			r.Post("/{campaignId}/status", controllers.CampaignSetStatus(deps.Campaigns, logg))
		})

		r.Route("/apps", func(r chi.Router) {
			r.Post("/", controllers.AppRegister(deps.Apps, logg))
			r.Get("/", controllers.AppList(deps.Apps, logg))
			r.Get("/{appId}", controllers.AppDetail(deps.Apps, logg))
		})

		r.Route("/credits", func(r chi.Router) {
			r.Get("/", controllers.CreditsBalance(deps.Credits, logg))
			r.Get("/entries", controllers.CreditsEntries(deps.Credits, logg))
			r.Post("/convert", controllers.CreditsConvert(deps.Credits, logg))
		})

		r.Get("/earnings", controllers.EarningsList(deps.Payouts, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(cfg.App, logg))
		r.Post("/credits/grant", controllers.AdminCreditsGrant(deps.Credits, logg))
	})

	return r
}
