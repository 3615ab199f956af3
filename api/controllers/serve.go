package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/api/responses"
	"github.com/admeshlabs/admesh-backend/api/validators"
	"github.com/admeshlabs/admesh-backend/internal/adserve"
	pkgerrors "github.com/admeshlabs/admesh-backend/pkg/errors"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

type serveRequest struct {
	PlacementID string `json:"placement_id" validate:"required,min=1,max=120"`
	DeviceHash  string `json:"device_hash" validate:"required,min=1,max=128"`
	NeverNoFill bool   `json:"never_no_fill"`
	SDKVersion  string `json:"sdk_version,omitempty"`
	Locale      string `json:"locale,omitempty"`
	OSVersion   string `json:"os_version,omitempty"`
}

// Serve answers one SDK ad request. A filled request returns the ad payload;
// no-fill returns 204 so publisher apps can collapse the placement.
func Serve(svc adserve.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		app := middleware.AppFromContext(ctx)
		if app == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "app context missing"))
			return
		}

		var req serveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ad, err := svc.Serve(ctx, adserve.ServeInput{
			AppID:       app.ID,
			PlacementID: req.PlacementID,
			DeviceHash:  req.DeviceHash,
			NeverNoFill: req.NeverNoFill,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if ad == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		responses.WriteSuccess(w, ad)
	}
}

type eventRequest struct {
	PlacementID string     `json:"placement_id" validate:"required,min=1,max=120"`
	DeviceHash  string     `json:"device_hash" validate:"required,min=1,max=128"`
	CampaignID  *uuid.UUID `json:"campaign_id,omitempty"`
	PurchaseID  *uuid.UUID `json:"purchase_id,omitempty"`
}

func (req eventRequest) input(appID uuid.UUID) adserve.EventInput {
	return adserve.EventInput{
		AppID:       appID,
		CampaignID:  req.CampaignID,
		PurchaseID:  req.PurchaseID,
		PlacementID: req.PlacementID,
		DeviceHash:  req.DeviceHash,
	}
}

// Impression records one rendered ad view, the accrual input.
func Impression(svc adserve.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		app := middleware.AppFromContext(ctx)
		if app == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "app context missing"))
			return
		}

		var req eventRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.RecordImpression(ctx, req.input(app.ID)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, nil)
	}
}

// Event records an arbitrary SDK-reported outcome by type name.
func Event(svc adserve.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		app := middleware.AppFromContext(ctx)
		if app == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "app context missing"))
			return
		}

		var req eventRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.RecordEvent(ctx, chi.URLParam(r, "kind"), req.input(app.ID)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, nil)
	}
}

// ClickRedirect verifies the click token, records the click, and forwards the
// device to the campaign destination.
func ClickRedirect(svc adserve.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		adID, err := validators.ParsePathUUID(chi.URLParam(r, "adId"), "adId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		query := r.URL.Query()
		destination, err := svc.ResolveClick(ctx, adID, query.Get("p"), query.Get("e"), query.Get("n"), query.Get("d"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		http.Redirect(w, r, destination, http.StatusFound)
	}
}
