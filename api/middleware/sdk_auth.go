package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/admeshlabs/admesh-backend/api/responses"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	pkgerrors "github.com/admeshlabs/admesh-backend/pkg/errors"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

const sdkTokenHeader = "X-AdMesh-Token"

// AppAuthenticator resolves an SDK credential to an active publisher app.
type AppAuthenticator interface {
	Authenticate(ctx context.Context, credential string) (*models.PublisherApp, error)
}

// SDKAuth authenticates serving traffic by SDK token. The credential is read
// from X-AdMesh-Token, falling back to the Authorization header.
func SDKAuth(apps AppAuthenticator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := strings.TrimSpace(r.Header.Get(sdkTokenHeader))
			if credential == "" {
				credential = bearerToken(r)
			}
			if credential == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing sdk token"))
				return
			}

			app, err := apps.Authenticate(r.Context(), credential)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithApp(r.Context(), app)
			if logg != nil {
				ctx = logg.WithAppID(ctx, app.ID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
