package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"chatgateway/internal/models"
	"chatgateway/internal/storage"
)

var (
	// ErrUnauthenticated is returned when no usable identity could be
	// established for the request
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUserNotFound is returned when a valid token references a user that
	// no longer exists in the directory
	ErrUserNotFound = errors.New("user not found")

	// ErrPermissionDenied is returned when the caller is not an admin on an
	// admin-only operation
	ErrPermissionDenied = errors.New("permission denied")
)

// UserDirectory is the slice of the user store the gate needs.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Gate decides, per request, whether a caller is authenticated and whether
// it may perform privileged operations.
type Gate struct {
	codec *TokenCodec
	users UserDirectory
}

// NewGate creates an authorization gate
func NewGate(codec *TokenCodec, users UserDirectory) *Gate {
	return &Gate{
		codec: codec,
		users: users,
	}
}

// RequireAuthenticated decodes the bearer token and confirms the claimed user
// still exists in the directory. The returned user is freshly loaded, so
// downstream privilege checks see current state rather than what the token
// was issued with.
func (g *Gate) RequireAuthenticated(ctx context.Context, token string) (*models.User, error) {
	claims, err := g.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// RequireAdmin checks the is_admin flag on a freshly loaded record. Admin
// status can change between token issuance and use, so the token payload is
// never trusted for this.
func (g *Gate) RequireAdmin(ctx context.Context, userID uuid.UUID) error {
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !user.IsAdmin {
		return ErrPermissionDenied
	}

	return nil
}
