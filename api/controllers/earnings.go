package controllers

import (
	"net/http"

	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/api/responses"
	"github.com/admeshlabs/admesh-backend/internal/payouts"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

// EarningsList returns the caller's weekly earnings, newest week first.
func EarningsList(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		earnings, err := svc.ListEarnings(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"earnings": earnings})
	}
}
