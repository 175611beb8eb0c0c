package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatgateway/internal/models"
)

// UserRepository handles user directory database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

const userColumns = `user_id, email, name, picture, is_admin, api_key, created_at, last_login`

// GetByID retrieves a user by their stable user_id
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE user_id = $1
	`

	err := r.db.conn.GetContext(ctx, &user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`

	err := r.db.conn.GetContext(ctx, &user, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpsertLogin records a login for the given profile. It inserts a fresh user
// with a newly generated user_id, or, when the email already exists, bumps
// last_login and returns the existing record. The unique email index is what
// collapses concurrent first logins into a single row; there is no
// application-level locking.
func (r *UserRepository) UpsertLogin(ctx context.Context, profile models.LoginProfile) (*models.User, error) {
	var user models.User
	query := `
		INSERT INTO users (user_id, email, name, picture, is_admin, created_at, last_login)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET last_login = NOW()
		RETURNING ` + userColumns + `
	`

	err := r.db.conn.GetContext(
		ctx, &user, query,
		uuid.New(), profile.Email, profile.Name, profile.Picture, profile.IsAdmin,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert login: %w", err)
	}

	return &user, nil
}

// SetAdminFlag sets or clears the admin flag for the given email
func (r *UserRepository) SetAdminFlag(ctx context.Context, email string, isAdmin bool) error {
	query := `
		UPDATE users
		SET is_admin = $2
		WHERE email = $1
	`

	result, err := r.db.conn.ExecContext(ctx, query, email, isAdmin)
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetPersonalKey assigns a personal upstream credential to the given email.
// A nil key unsets it so credential resolution falls through to the next tier.
func (r *UserRepository) SetPersonalKey(ctx context.Context, email string, key *string) error {
	query := `
		UPDATE users
		SET api_key = $2
		WHERE email = $1
	`

	result, err := r.db.conn.ExecContext(ctx, query, email, key)
	if err != nil {
		return fmt.Errorf("failed to set personal key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ListedUser is a user row as exposed by List. The api_key column is never
// selected; only its presence is derived.
type ListedUser struct {
	ID             uuid.UUID `db:"user_id"`
	Email          string    `db:"email"`
	Name           string    `db:"name"`
	Picture        string    `db:"picture"`
	IsAdmin        bool      `db:"is_admin"`
	HasPersonalKey bool      `db:"has_personal_key"`
	CreatedAt      time.Time `db:"created_at"`
	LastLogin      time.Time `db:"last_login"`
}

// List retrieves all users without their credential material
func (r *UserRepository) List(ctx context.Context) ([]*ListedUser, error) {
	query := `
		SELECT user_id, email, name, picture, is_admin,
		       (api_key IS NOT NULL AND api_key <> '') AS has_personal_key,
		       created_at, last_login
		FROM users
		ORDER BY created_at DESC
	`

	var users []*ListedUser
	err := r.db.conn.SelectContext(ctx, &users, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// Count returns the total number of users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.conn.GetContext(ctx, &count, "SELECT COUNT(*) FROM users")
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return count, nil
}
