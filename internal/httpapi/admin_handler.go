package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"chatgateway/internal/credentials"
	"chatgateway/internal/middleware"
	"chatgateway/internal/storage"
	"chatgateway/internal/utils"
)

// AdminHandler handles key assignment and user management endpoints. All of
// its routes sit behind the admin middleware.
type AdminHandler struct {
	users    UserStore
	chats    ChatStore
	defaults DefaultKeyStore
	resolver CredentialResolver
	logger   *utils.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(users UserStore, chats ChatStore, defaults DefaultKeyStore, resolver CredentialResolver) *AdminHandler {
	return &AdminHandler{
		users:    users,
		chats:    chats,
		defaults: defaults,
		resolver: resolver,
		logger:   utils.NewLogger("admin"),
	}
}

// ConfigureRequest sets either a specific user's key (UserEmail provided) or
// the default key config
type ConfigureRequest struct {
	APIKey    string `json:"api_key"`
	UserEmail string `json:"user_email,omitempty"`
}

// Configure handles POST /api/admin/configure
func (h *AdminHandler) Configure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ConfigureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.APIKey == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	if req.UserEmail != "" {
		err := h.users.SetPersonalKey(r.Context(), req.UserEmail, &req.APIKey)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				utils.RespondWithError(w, http.StatusNotFound, "User not found")
				return
			}
			h.logger.Error("Failed to set personal key", "error", err, "email", req.UserEmail)
			utils.RespondWithError(w, http.StatusInternalServerError, "Configuration failed")
			return
		}
	} else {
		if err := h.defaults.Set(r.Context(), req.APIKey); err != nil {
			h.logger.Error("Failed to set default key", "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Configuration failed")
			return
		}
	}

	utils.RespondWithMessage(w, http.StatusOK, "API key configured successfully")
}

// AdminUserEntry is one user in the admin listing. Credential material is
// never included, only derived presence.
type AdminUserEntry struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Picture        string `json:"picture"`
	IsAdmin        bool   `json:"is_admin"`
	HasAPIKey      bool   `json:"has_api_key"`
	APIKeySource   string `json:"api_key_source"`
	HasPersonalKey bool   `json:"has_personal_key"`
	CreatedAt      string `json:"created_at"`
	LastLogin      string `json:"last_login"`
}

// AdminUsersResponse is the reply for GET /api/admin/users
type AdminUsersResponse struct {
	Users []AdminUserEntry `json:"users"`
}

// Users handles GET /api/admin/users
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	listed, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list users", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get users")
		return
	}

	// The fallback tier is the same for every user without a personal key, so
	// resolve it once.
	fallbackTier, fallbackErr := h.resolver.Fallback(r.Context())
	if fallbackErr != nil && !errors.Is(fallbackErr, credentials.ErrNoCredential) {
		h.logger.Error("Failed to resolve fallback tier", "error", fallbackErr)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get users")
		return
	}

	entries := make([]AdminUserEntry, 0, len(listed))
	for _, u := range listed {
		entry := AdminUserEntry{
			UserID:         u.ID.String(),
			Email:          u.Email,
			Name:           u.Name,
			Picture:        u.Picture,
			IsAdmin:        u.IsAdmin,
			HasPersonalKey: u.HasPersonalKey,
			CreatedAt:      u.CreatedAt.UTC().Format(time.RFC3339),
			LastLogin:      u.LastLogin.UTC().Format(time.RFC3339),
		}
		switch {
		case u.HasPersonalKey:
			entry.HasAPIKey = true
			entry.APIKeySource = string(credentials.TierPersonal)
		case fallbackErr == nil:
			entry.HasAPIKey = true
			entry.APIKeySource = string(fallbackTier)
		}
		entries = append(entries, entry)
	}

	utils.RespondWithJSON(w, http.StatusOK, AdminUsersResponse{Users: entries})
}

// AdminStatsResponse is the reply for GET /api/admin/stats
type AdminStatsResponse struct {
	TotalUsers int    `json:"total_users"`
	TotalChats int    `json:"total_chats"`
	AdminEmail string `json:"admin_email"`
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	caller, ok := middleware.GetCurrentUser(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusForbidden, "Missing bearer token")
		return
	}

	totalUsers, err := h.users.Count(r.Context())
	if err != nil {
		h.logger.Error("Failed to count users", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get statistics")
		return
	}

	totalChats, err := h.chats.Count(r.Context())
	if err != nil {
		h.logger.Error("Failed to count chats", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get statistics")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, AdminStatsResponse{
		TotalUsers: totalUsers,
		TotalChats: totalChats,
		AdminEmail: caller.Email,
	})
}

// UserAPIKeyRequest assigns or removes a user's personal key
type UserAPIKeyRequest struct {
	Email  string `json:"email"`
	APIKey string `json:"api_key"`
	Action string `json:"action,omitempty"` // "remove" unsets the key
}

// UserAPIKey handles POST /api/admin/user-api-key
func (h *AdminHandler) UserAPIKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req UserAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Email == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "email is required")
		return
	}

	// action=remove and an empty key both unset, so resolution falls through
	// to the next tier.
	var key *string
	if req.Action != "remove" && req.APIKey != "" {
		key = &req.APIKey
	}

	if err := h.users.SetPersonalKey(r.Context(), req.Email, key); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("Failed to update personal key", "error", err, "email", req.Email)
		utils.RespondWithError(w, http.StatusInternalServerError, "Configuration failed")
		return
	}

	if key == nil {
		utils.RespondWithMessage(w, http.StatusOK, "API key removed")
	} else {
		utils.RespondWithMessage(w, http.StatusOK, "API key assigned")
	}
}

// ManageAdminRequest toggles a user's admin flag
type ManageAdminRequest struct {
	Email  string `json:"email"`
	Action string `json:"action"` // "add" or "remove"
}

// ManageAdmin handles POST /api/admin/manage-admin
func (h *AdminHandler) ManageAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ManageAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Email == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "email is required")
		return
	}

	var isAdmin bool
	switch req.Action {
	case "add":
		isAdmin = true
	case "remove":
		isAdmin = false
	default:
		utils.RespondWithError(w, http.StatusBadRequest, "action must be \"add\" or \"remove\"")
		return
	}

	if err := h.users.SetAdminFlag(r.Context(), req.Email, isAdmin); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("Failed to set admin flag", "error", err, "email", req.Email)
		utils.RespondWithError(w, http.StatusInternalServerError, "Configuration failed")
		return
	}

	utils.RespondWithMessage(w, http.StatusOK, "Admin status updated")
}
