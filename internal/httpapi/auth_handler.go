package httpapi

import (
	"errors"
	"net/http"

	"chatgateway/internal/auth"
	"chatgateway/internal/config"
	"chatgateway/internal/models"
	"chatgateway/internal/utils"
)

// AuthHandler handles the Google OAuth login flow and token issuance
type AuthHandler struct {
	oauth  OAuthProvider
	states OAuthStateStore
	users  UserStore
	codec  *auth.TokenCodec
	cfg    *config.Config
	logger *utils.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(oauth OAuthProvider, states OAuthStateStore, users UserStore, codec *auth.TokenCodec, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		oauth:  oauth,
		states: states,
		users:  users,
		codec:  codec,
		cfg:    cfg,
		logger: utils.NewLogger("auth"),
	}
}

// Login handles GET /api/login/google - redirect to the OAuth provider
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state, err := h.states.Issue(r.Context())
	if err != nil {
		h.logger.Error("Failed to issue oauth state", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /auth/google - the OAuth provider redirect. It
// exchanges the code for an identity, upserts the user record, issues a
// bearer token and redirects to the frontend with ?token=.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := h.states.Consume(r.Context(), r.URL.Query().Get("state")); err != nil {
		if errors.Is(err, auth.ErrStateNotFound) {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid or expired oauth state")
			return
		}
		h.logger.Error("Failed to consume oauth state", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	identity, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("OAuth exchange failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	// The allow-list only matters when this login creates the account; for
	// existing users the stored flag is authoritative.
	user, err := h.users.UpsertLogin(r.Context(), models.LoginProfile{
		Email:   identity.Email,
		Name:    identity.Name,
		Picture: identity.Picture,
		IsAdmin: h.cfg.IsAdminEmail(identity.Email),
	})
	if err != nil {
		h.logger.Error("Failed to upsert login", "error", err, "email", identity.Email)
		utils.RespondWithError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	token, _, err := h.codec.Issue(user.ID.String(), user.Email)
	if err != nil {
		h.logger.Error("Failed to issue token", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	http.Redirect(w, r, h.cfg.FrontendURL+"?token="+token, http.StatusFound)
}
