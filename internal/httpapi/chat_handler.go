package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chatgateway/internal/audit"
	"chatgateway/internal/credentials"
	"chatgateway/internal/middleware"
	"chatgateway/internal/models"
	"chatgateway/internal/utils"
)

const chatHistoryLimit = 50

// ChatHandler relays messages to the upstream model and serves history
type ChatHandler struct {
	chats    ChatStore
	resolver CredentialResolver
	relay    ChatRelay
	sink     audit.Sink
	model    string
	timeout  time.Duration
	logger   *utils.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chats ChatStore, resolver CredentialResolver, relay ChatRelay, sink audit.Sink, model string, timeout time.Duration) *ChatHandler {
	return &ChatHandler{
		chats:    chats,
		resolver: resolver,
		relay:    relay,
		sink:     sink,
		model:    model,
		timeout:  timeout,
		logger:   utils.NewLogger("chat"),
	}
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply for POST /api/chat
type ChatResponse struct {
	Response     string `json:"response"`
	SessionID    string `json:"session_id"`
	Timestamp    string `json:"timestamp"`
	APIKeySource string `json:"api_key_source"`
}

// Chat handles POST /api/chat - resolve a credential, relay the message,
// persist the exchange.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user, ok := middleware.GetCurrentUser(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusForbidden, "Missing bearer token")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Message == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Message is required")
		return
	}

	apiKey, tier, err := h.resolver.Resolve(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, credentials.ErrNoCredential) {
			utils.RespondWithError(w, http.StatusBadRequest, "No API key configured - contact your administrator")
			return
		}
		h.logger.Error("Credential resolution failed", "error", err, "user_id", user.ID)
		utils.RespondWithError(w, http.StatusInternalServerError, "Chat failed")
		return
	}

	sessionID := fmt.Sprintf("chat_%s_%s", user.ID, time.Now().UTC().Format("20060102_150405"))

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	response, err := h.relay.Complete(ctx, apiKey, req.Message)
	upstreamMs := time.Since(start).Milliseconds()

	if err != nil {
		// The detail stays server-side; the caller gets a stable message with
		// no credential material.
		h.logger.Error("Upstream relay failed", "error", err, "user_id", user.ID, "source", tier)
		h.enqueueAudit(&audit.Record{
			Timestamp:        time.Now().UTC(),
			UserID:           user.ID.String(),
			SessionID:        sessionID,
			CredentialSource: string(tier),
			Model:            h.model,
			UpstreamMs:       upstreamMs,
			Error:            err.Error(),
		})
		utils.RespondWithError(w, http.StatusInternalServerError, "Chat failed")
		return
	}

	record := &models.ChatRecord{
		UserID:            user.ID,
		SessionID:         sessionID,
		UserMessage:       req.Message,
		AssistantResponse: response,
		CredentialSource:  string(tier),
	}
	if err := h.chats.Insert(r.Context(), record); err != nil {
		h.logger.Error("Failed to persist chat record", "error", err, "user_id", user.ID)
		utils.RespondWithError(w, http.StatusInternalServerError, "Chat failed")
		return
	}

	h.enqueueAudit(&audit.Record{
		Timestamp:        record.Timestamp.UTC(),
		ChatID:           record.ChatID.String(),
		UserID:           user.ID.String(),
		SessionID:        sessionID,
		CredentialSource: string(tier),
		Model:            h.model,
		UpstreamMs:       upstreamMs,
	})

	utils.RespondWithJSON(w, http.StatusOK, ChatResponse{
		Response:     response,
		SessionID:    sessionID,
		Timestamp:    record.Timestamp.UTC().Format(time.RFC3339),
		APIKeySource: string(tier),
	})
}

// ChatHistoryEntry is one exchange in the caller's history
type ChatHistoryEntry struct {
	ChatID            string `json:"chat_id"`
	SessionID         string `json:"session_id"`
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
	CredentialSource  string `json:"credential_source"`
	Timestamp         string `json:"timestamp"`
}

// ChatHistoryResponse is the reply for GET /api/chat/history
type ChatHistoryResponse struct {
	Chats []ChatHistoryEntry `json:"chats"`
}

// History handles GET /api/chat/history - the caller's last exchanges,
// newest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user, ok := middleware.GetCurrentUser(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusForbidden, "Missing bearer token")
		return
	}

	records, err := h.chats.ListByUser(r.Context(), user.ID, chatHistoryLimit)
	if err != nil {
		h.logger.Error("Failed to list chat history", "error", err, "user_id", user.ID)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get chat history")
		return
	}

	entries := make([]ChatHistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, ChatHistoryEntry{
			ChatID:            rec.ChatID.String(),
			SessionID:         rec.SessionID,
			UserMessage:       rec.UserMessage,
			AssistantResponse: rec.AssistantResponse,
			CredentialSource:  rec.CredentialSource,
			Timestamp:         rec.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	utils.RespondWithJSON(w, http.StatusOK, ChatHistoryResponse{Chats: entries})
}

func (h *ChatHandler) enqueueAudit(rec *audit.Record) {
	if err := h.sink.Enqueue(rec); err != nil {
		h.logger.Warn("Failed to enqueue audit record", "error", err)
	}
}
