package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRecord is an append-only log of one user/assistant exchange.
// Records are never updated or deleted.
type ChatRecord struct {
	ChatID            uuid.UUID `db:"chat_id"`
	UserID            uuid.UUID `db:"user_id"`
	SessionID         string    `db:"session_id"`
	UserMessage       string    `db:"user_message"`
	AssistantResponse string    `db:"assistant_response"`
	CredentialSource  string    `db:"credential_source"` // tier the upstream key came from
	Timestamp         time.Time `db:"timestamp"`
}
