package storage

import (
	"context"
	"database/sql"
	"fmt"

	"chatgateway/internal/models"
)

// DefaultKeyRepository handles the singleton default-key config document
type DefaultKeyRepository struct {
	db *DB
}

// NewDefaultKeyRepository creates a new default key repository
func NewDefaultKeyRepository(db *DB) *DefaultKeyRepository {
	return &DefaultKeyRepository{
		db: db,
	}
}

// Get retrieves the default key config, if one has been set
func (r *DefaultKeyRepository) Get(ctx context.Context) (*models.DefaultKeyConfig, error) {
	var cfg models.DefaultKeyConfig
	query := `
		SELECT api_key, updated_at
		FROM default_key_config
		WHERE config_type = 'default'
	`

	err := r.db.conn.GetContext(ctx, &cfg, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDefaultKeyNotFound
		}
		return nil, fmt.Errorf("failed to get default key config: %w", err)
	}

	return &cfg, nil
}

// Set creates or overwrites the default key config
func (r *DefaultKeyRepository) Set(ctx context.Context, apiKey string) error {
	query := `
		INSERT INTO default_key_config (config_type, api_key, updated_at)
		VALUES ('default', $1, NOW())
		ON CONFLICT (config_type) DO UPDATE SET api_key = $1, updated_at = NOW()
	`

	if _, err := r.db.conn.ExecContext(ctx, query, apiKey); err != nil {
		return fmt.Errorf("failed to set default key config: %w", err)
	}

	return nil
}
