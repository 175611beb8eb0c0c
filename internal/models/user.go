package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account created on first Google login.
// user_id is generated once and stays stable across logins; email is unique.
type User struct {
	ID        uuid.UUID `db:"user_id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	Picture   string    `db:"picture"`
	IsAdmin   bool      `db:"is_admin"`
	APIKey    *string   `db:"api_key"` // personal upstream credential, absent by default
	CreatedAt time.Time `db:"created_at"`
	LastLogin time.Time `db:"last_login"`
}

// HasPersonalKey reports whether the user carries a usable personal credential.
func (u *User) HasPersonalKey() bool {
	return u.APIKey != nil && *u.APIKey != ""
}

// LoginProfile is the identity asserted by the OAuth provider at login time.
type LoginProfile struct {
	Email   string
	Name    string
	Picture string
	// IsAdmin is only honored when the login creates the account; on repeat
	// logins the stored flag wins.
	IsAdmin bool
}
