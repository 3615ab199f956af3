package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/api/responses"
	"github.com/admeshlabs/admesh-backend/api/validators"
	"github.com/admeshlabs/admesh-backend/internal/campaigns"
	"github.com/admeshlabs/admesh-backend/pkg/enums"
	pkgerrors "github.com/admeshlabs/admesh-backend/pkg/errors"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

// CampaignCreate registers a creative for the caller's promoted app.
func CampaignCreate(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var input campaigns.CreateCampaignInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input.OwnerUserID = middleware.UserIDFromContext(ctx)

		campaign, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, campaign)
	}
}

// CampaignList returns the caller's campaigns.
func CampaignList(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		list, err := svc.ListByOwner(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"campaigns": list})
	}
}

// CampaignDetail returns one of the caller's campaigns.
func CampaignDetail(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		campaign, err := svc.GetOwned(ctx, id, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

type campaignStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CampaignSetStatus transitions one of the caller's campaigns.
func CampaignSetStatus(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParsePathUUID(chi.URLParam(r, "campaignId"), "campaignId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req campaignStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := enums.ParseCampaignStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		if err := svc.SetStatus(ctx, id, middleware.UserIDFromContext(ctx), status); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(status)})
	}
}
