package models

import "time"

// DefaultKeyConfig is the singleton fallback credential maintained by admins.
// At most one row exists (config_type = "default").
type DefaultKeyConfig struct {
	APIKey    string    `db:"api_key"`
	UpdatedAt time.Time `db:"updated_at"`
}

// HasKey reports whether the config carries a usable credential.
func (c *DefaultKeyConfig) HasKey() bool {
	return c != nil && c.APIKey != ""
}
