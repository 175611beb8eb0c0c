package httpapi

import (
	"context"

	"github.com/google/uuid"

	"chatgateway/internal/auth"
	"chatgateway/internal/credentials"
	"chatgateway/internal/models"
	"chatgateway/internal/storage"
)

// UserStore is the user directory surface the handlers need. Implemented by
// storage.UserRepository and by in-memory mocks in tests.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpsertLogin(ctx context.Context, profile models.LoginProfile) (*models.User, error)
	SetAdminFlag(ctx context.Context, email string, isAdmin bool) error
	SetPersonalKey(ctx context.Context, email string, key *string) error
	List(ctx context.Context) ([]*storage.ListedUser, error)
	Count(ctx context.Context) (int, error)
}

// ChatStore is the chat record surface the handlers need.
type ChatStore interface {
	Insert(ctx context.Context, record *models.ChatRecord) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ChatRecord, error)
	Count(ctx context.Context) (int, error)
}

// DefaultKeyStore is the default-key config surface the handlers need.
type DefaultKeyStore interface {
	Get(ctx context.Context) (*models.DefaultKeyConfig, error)
	Set(ctx context.Context, apiKey string) error
}

// CredentialResolver picks the upstream key for a user.
type CredentialResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (string, credentials.Tier, error)
	Fallback(ctx context.Context) (credentials.Tier, error)
}

// ChatRelay forwards a user message to the upstream model.
type ChatRelay interface {
	Complete(ctx context.Context, apiKey, message string) (string, error)
}

// OAuthProvider drives the external OAuth handshake.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// OAuthStateStore issues and consumes single-use CSRF state nonces.
type OAuthStateStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) error
}
