package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chatgateway/internal/models"
)

// ChatRepository handles chat record database operations. Records are
// append-only; there is no update or delete.
type ChatRepository struct {
	db *DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{
		db: db,
	}
}

// Insert stores one exchange. The write timestamp is assigned by the store.
func (r *ChatRepository) Insert(ctx context.Context, record *models.ChatRecord) error {
	query := `
		INSERT INTO chats (chat_id, user_id, session_id, user_message, assistant_response, credential_source, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING timestamp
	`

	if record.ChatID == uuid.Nil {
		record.ChatID = uuid.New()
	}

	err := r.db.conn.QueryRowContext(
		ctx, query,
		record.ChatID, record.UserID, record.SessionID,
		record.UserMessage, record.AssistantResponse, record.CredentialSource,
	).Scan(&record.Timestamp)

	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}

	return nil
}

// ListByUser retrieves the caller's most recent exchanges, newest first.
// Records of other users are never visible through this query.
func (r *ChatRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ChatRecord, error) {
	query := `
		SELECT chat_id, user_id, session_id, user_message, assistant_response, credential_source, timestamp
		FROM chats
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	var records []*models.ChatRecord
	err := r.db.conn.SelectContext(ctx, &records, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat records: %w", err)
	}

	return records, nil
}

// Count returns the total number of chat records across all users
func (r *ChatRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.conn.GetContext(ctx, &count, "SELECT COUNT(*) FROM chats")
	if err != nil {
		return 0, fmt.Errorf("failed to count chat records: %w", err)
	}

	return count, nil
}
