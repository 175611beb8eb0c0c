package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"chatgateway/internal/models"
	"chatgateway/internal/storage"
)

// Tier identifies where a resolved upstream credential came from.
type Tier string

const (
	// TierPersonal is the user's own api_key
	TierPersonal Tier = "personal"

	// TierDefaultAdmin is the admin-maintained default key config
	TierDefaultAdmin Tier = "default_admin"

	// TierEnvironment is the process-wide fallback supplied at startup
	TierEnvironment Tier = "environment"
)

// ErrNoCredential is returned when no tier yields a usable key. Callers
// surface this as a user-facing configuration error, not a server error.
var ErrNoCredential = errors.New("no upstream credential configured")

// UserSource is the slice of the user directory the resolver needs.
type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// DefaultKeySource is the slice of the default-key store the resolver needs.
type DefaultKeySource interface {
	Get(ctx context.Context) (*models.DefaultKeyConfig, error)
}

// Resolver picks the upstream API key for a user. Tiers are evaluated in
// strict order, first match wins: personal, default_admin, environment.
type Resolver struct {
	users    UserSource
	defaults DefaultKeySource
	envKey   string
}

// NewResolver creates a credential resolver. envKey may be empty, in which
// case the environment tier never matches.
func NewResolver(users UserSource, defaults DefaultKeySource, envKey string) *Resolver {
	return &Resolver{
		users:    users,
		defaults: defaults,
		envKey:   envKey,
	}
}

// Resolve returns the key to use for the given user and the tier it came
// from. Returns ErrNoCredential when all three tiers are empty.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (string, Tier, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load user for credential resolution: %w", err)
	}

	if user.HasPersonalKey() {
		return *user.APIKey, TierPersonal, nil
	}

	key, tier, err := r.fallback(ctx)
	if err != nil {
		return "", "", err
	}
	return key, tier, nil
}

// Fallback returns the tier that would serve a user without a personal key,
// or ErrNoCredential when neither fallback is configured. Used for listings
// and status reporting so they agree with Resolve.
func (r *Resolver) Fallback(ctx context.Context) (Tier, error) {
	_, tier, err := r.fallback(ctx)
	return tier, err
}

func (r *Resolver) fallback(ctx context.Context) (string, Tier, error) {
	cfg, err := r.defaults.Get(ctx)
	if err != nil && !errors.Is(err, storage.ErrDefaultKeyNotFound) {
		return "", "", fmt.Errorf("failed to load default key config: %w", err)
	}
	if cfg.HasKey() {
		return cfg.APIKey, TierDefaultAdmin, nil
	}

	if r.envKey != "" {
		return r.envKey, TierEnvironment, nil
	}

	return "", "", ErrNoCredential
}
