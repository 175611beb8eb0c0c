package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"chatgateway/internal/auth"
	"chatgateway/internal/models"
	"chatgateway/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

// CurrentUserKey is the context key for the freshly loaded authenticated user
const CurrentUserKey ContextKey = "currentUser"

// RequireUser validates the bearer token and loads the current user from the
// directory. A missing or unparseable Authorization header is rejected with
// 403; an invalid or expired token, or a token whose user no longer exists,
// with 401. The fresh user record is placed in the request context.
func RequireUser(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				utils.RespondWithError(w, http.StatusForbidden, "Missing bearer token")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			user, err := gate.RequireAuthenticated(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					utils.RespondWithError(w, http.StatusUnauthorized, "Token expired")
				case errors.Is(err, auth.ErrTokenInvalid):
					utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
				case errors.Is(err, auth.ErrUserNotFound):
					utils.RespondWithError(w, http.StatusUnauthorized, "User not found")
				default:
					utils.RespondWithError(w, http.StatusInternalServerError, "Error validating token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), CurrentUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin re-checks the caller's admin flag against the directory on
// every privileged call. It must be stacked inside RequireUser.
func RequireAdmin(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetCurrentUser(r.Context())
			if !ok {
				utils.RespondWithError(w, http.StatusForbidden, "Missing bearer token")
				return
			}

			if err := gate.RequireAdmin(r.Context(), user.ID); err != nil {
				switch {
				case errors.Is(err, auth.ErrPermissionDenied):
					utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
				case errors.Is(err, auth.ErrUserNotFound):
					utils.RespondWithError(w, http.StatusUnauthorized, "User not found")
				default:
					utils.RespondWithError(w, http.StatusInternalServerError, "Error checking permissions")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetCurrentUser retrieves the authenticated user from the request context
func GetCurrentUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(CurrentUserKey).(*models.User)
	return user, ok
}
