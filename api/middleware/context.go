package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxApp    contextKey = "publisher_app"
)

// UserIDFromContext returns the authenticated dashboard user, or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// AppFromContext returns the authenticated publisher app, or nil.
func AppFromContext(ctx context.Context) *models.PublisherApp {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxApp).(*models.PublisherApp); ok {
		return v
	}
	return nil
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithApp injects the resolved publisher app into the context.
func WithApp(ctx context.Context, app *models.PublisherApp) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxApp, app)
}
