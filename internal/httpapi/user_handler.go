package httpapi

import (
	"errors"
	"net/http"

	"chatgateway/internal/credentials"
	"chatgateway/internal/middleware"
	"chatgateway/internal/utils"
)

// UserHandler handles profile and key-status endpoints for the caller
type UserHandler struct {
	resolver CredentialResolver
	logger   *utils.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(resolver CredentialResolver) *UserHandler {
	return &UserHandler{
		resolver: resolver,
		logger:   utils.NewLogger("user"),
	}
}

// ProfileResponse is the caller's own profile
type ProfileResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	IsAdmin bool   `json:"is_admin"`
}

// Profile handles GET /api/user/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user, ok := middleware.GetCurrentUser(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusForbidden, "Missing bearer token")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, ProfileResponse{
		UserID:  user.ID.String(),
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Picture,
		IsAdmin: user.IsAdmin,
	})
}

// APIKeyStatusResponse reports whether and whence the caller's requests
// would be credentialed
type APIKeyStatusResponse struct {
	HasAPIKey      bool   `json:"has_api_key"`
	APIKeySource   string `json:"api_key_source"`
	HasPersonalKey bool   `json:"has_personal_key"`
}

// APIKeyStatus handles GET /api/user/api-key-status
func (h *UserHandler) APIKeyStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user, ok := middleware.GetCurrentUser(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusForbidden, "Missing bearer token")
		return
	}

	resp := APIKeyStatusResponse{
		HasPersonalKey: user.HasPersonalKey(),
	}

	_, tier, err := h.resolver.Resolve(r.Context(), user.ID)
	switch {
	case err == nil:
		resp.HasAPIKey = true
		resp.APIKeySource = string(tier)
	case errors.Is(err, credentials.ErrNoCredential):
		// No usable key at any tier; report that plainly.
	default:
		h.logger.Error("Failed to resolve credential", "error", err, "user_id", user.ID)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to check API key status")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}
