package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/api/responses"
	"github.com/admeshlabs/admesh-backend/api/validators"
	"github.com/admeshlabs/admesh-backend/internal/credits"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

// CreditsBalance returns the caller's derived balance, held, and spendable
// amounts.
func CreditsBalance(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		summary, err := svc.Balance(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// CreditsEntries returns the caller's recent ledger entries.
func CreditsEntries(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		entries, err := svc.ListEntries(ctx, middleware.UserIDFromContext(ctx), limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}

type convertRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"required,min=1"`
}

// CreditsConvert turns the caller's eligible earnings into ad credits.
func CreditsConvert(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req convertRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.ConvertEarnings(ctx, middleware.UserIDFromContext(ctx), req.AmountCents)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type grantRequest struct {
	UserID      uuid.UUID       `json:"user_id" validate:"required"`
	AmountCents int64           `json:"amount_cents" validate:"required,min=1"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// AdminCreditsGrant issues promotional credits to a user.
func AdminCreditsGrant(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req grantRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		entry, err := svc.Grant(ctx, req.UserID, req.AmountCents, req.Metadata)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}
