package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/admeshlabs/admesh-backend/api/responses"
	"github.com/admeshlabs/admesh-backend/pkg/config"
	pkgerrors "github.com/admeshlabs/admesh-backend/pkg/errors"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

// RequireAdmin rejects authenticated users who are not on the admin allowlist.
// Must run after Auth.
func RequireAdmin(cfg config.AppConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if userID == uuid.Nil || !cfg.IsAdmin(userID.String()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
