package apps

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/pkg/auth"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
	apperrors "github.com/admeshlabs/admesh-backend/pkg/errors"
)

type fakeRepository struct {
	apps    map[uuid.UUID]*models.PublisherApp
	tokens  map[string]*models.AppToken
	touched []uuid.UUID
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		apps:   map[uuid.UUID]*models.PublisherApp{},
		tokens: map[string]*models.AppToken{},
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) GetByID(_ context.Context, id uuid.UUID) (*models.PublisherApp, error) {
	return f.apps[id], nil
}

func (f *fakeRepository) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.PublisherApp, error) {
	var out []models.PublisherApp
	for _, app := range f.apps {
		if app.OwnerUserID == ownerID {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (f *fakeRepository) Create(_ context.Context, app *models.PublisherApp) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	f.apps[app.ID] = app
	return nil
}

func (f *fakeRepository) CreateToken(_ context.Context, token *models.AppToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	f.tokens[token.TokenHash] = token
	return nil
}

func (f *fakeRepository) GetTokenByHash(_ context.Context, hash string) (*models.AppToken, error) {
	token := f.tokens[hash]
	if token != nil && token.RevokedAt != nil {
		return nil, nil
	}
	return token, nil
}

func (f *fakeRepository) TouchToken(_ context.Context, tokenID uuid.UUID, _ time.Time) error {
	f.touched = append(f.touched, tokenID)
	return nil
}

func (f *fakeRepository) RevokeToken(_ context.Context, tokenID uuid.UUID, at time.Time) error {
	for _, token := range f.tokens {
		if token.ID == tokenID {
			token.RevokedAt = &at
		}
	}
	return nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, clock.Fixed(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestRegisterMintsToken(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)

	app, raw, err := svc.Register(context.Background(), RegisterAppInput{
		OwnerUserID: uuid.New(),
		Name:        "Habit Tracker",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if app.ID == uuid.Nil {
		t.Fatal("expected app id to be assigned")
	}
	if raw == "" {
		t.Fatal("expected raw token to be returned")
	}
	if _, ok := repo.tokens[auth.HashAppToken(raw)]; !ok {
		t.Fatal("token hash not persisted")
	}
}

func TestAuthenticateByToken(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)

	app, raw, err := svc.Register(context.Background(), RegisterAppInput{
		OwnerUserID: uuid.New(),
		Name:        "Habit Tracker",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	got, err := svc.Authenticate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if got.ID != app.ID {
		t.Fatalf("expected app %s, got %s", app.ID, got.ID)
	}
	if len(repo.touched) != 1 {
		t.Fatalf("expected token last_used_at touch, got %d", len(repo.touched))
	}
}

func TestAuthenticateByBareAppID(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)

	app, _, err := svc.Register(context.Background(), RegisterAppInput{
		OwnerUserID: uuid.New(),
		Name:        "Habit Tracker",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	got, err := svc.Authenticate(context.Background(), app.ID.String())
	if err != nil {
		t.Fatalf("Authenticate by id error: %v", err)
	}
	if got.ID != app.ID {
		t.Fatalf("expected app %s, got %s", app.ID, got.ID)
	}
}

func TestAuthenticateRejectsUnknownAndInactive(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)

	_, err := svc.Authenticate(context.Background(), "amt_deadbeef")
	if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for unknown token, got %v", err)
	}

	app, raw, err := svc.Register(context.Background(), RegisterAppInput{
		OwnerUserID: uuid.New(),
		Name:        "Habit Tracker",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	app.IsActive = false

	_, err = svc.Authenticate(context.Background(), raw)
	if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for inactive app, got %v", err)
	}
}
