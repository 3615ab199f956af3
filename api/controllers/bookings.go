package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/api/responses"
	"github.com/admeshlabs/admesh-backend/api/validators"
	"github.com/admeshlabs/admesh-backend/internal/booking"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

// BookingCreate opens a booking intent for a share of the next purchasable
// week. Fully credit-covered intents confirm synchronously; otherwise the
// response carries a checkout URL for the cash leg.
func BookingCreate(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var input booking.CreateIntentInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input.UserID = middleware.UserIDFromContext(ctx)

		result, err := svc.CreateIntent(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// BookingDetail returns one of the caller's booking intents for polling.
func BookingDetail(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParsePathUUID(chi.URLParam(r, "bookingId"), "bookingId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		intent, err := svc.GetIntent(ctx, id, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// BookingList returns the caller's booking intents, newest first.
func BookingList(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		intents, err := svc.ListIntents(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"bookings": intents})
	}
}
