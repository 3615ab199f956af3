package controllers

import (
	"net/http"

	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/api/responses"
	"github.com/admeshlabs/admesh-backend/api/validators"
	"github.com/admeshlabs/admesh-backend/internal/slots"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

// SlotsUpcoming returns advisory availability for the next weeks, starting
// with the purchasable one.
func SlotsUpcoming(svc slots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		weeks, err := validators.ParseQueryInt(r, "weeks", 4, 1, 12)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		availability, err := svc.UpcomingWeeks(ctx, weeks)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"weeks": availability})
	}
}

// SlotsQuote prices a percentage share of the next purchasable week without
// committing to it.
func SlotsQuote(svc slots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		percentage, err := validators.ParseQueryInt(r, "percentage", 0, slots.MinPercentage, slots.MaxPercentage)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		quote, err := svc.QuotePercentage(ctx, middleware.UserIDFromContext(ctx), percentage)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}
