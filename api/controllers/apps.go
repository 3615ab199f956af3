package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/admeshlabs/admesh-backend/api/middleware"
	"github.com/admeshlabs/admesh-backend/api/responses"
	"github.com/admeshlabs/admesh-backend/api/validators"
	"github.com/admeshlabs/admesh-backend/internal/apps"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

// AppRegister onboards a publisher app. The SDK token is returned exactly
// once; only its hash is stored.
func AppRegister(svc apps.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var input apps.RegisterAppInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input.OwnerUserID = middleware.UserIDFromContext(ctx)

		app, token, err := svc.Register(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"app":       app,
			"sdk_token": token,
		})
	}
}

// AppList returns the caller's registered apps.
func AppList(svc apps.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		list, err := svc.ListByOwner(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"apps": list})
	}
}

// AppDetail returns one app by id.
func AppDetail(svc apps.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParsePathUUID(chi.URLParam(r, "appId"), "appId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		app, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, app)
	}
}
