package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"chatgateway/internal/config"
	"chatgateway/internal/storage"
)

// Bootstrap tool: promotes an already-registered user to admin and optionally
// seeds the default key config. The HTTP surface has no path for a non-admin
// to self-promote, so the very first admin is created here (or via the
// ADMIN_EMAILS allow-list at first login).
func main() {
	fmt.Println("Chat Gateway - Bootstrap Admin Initialization")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	email := os.Getenv("ADMIN_BOOTSTRAP_EMAIL")
	if email == "" {
		fmt.Fprintf(os.Stderr, "ERROR: ADMIN_BOOTSTRAP_EMAIL must be set\n")
		os.Exit(1)
	}
	if !isValidEmail(email) {
		fmt.Fprintf(os.Stderr, "ERROR: Invalid email format: %s\n", email)
		os.Exit(1)
	}

	fmt.Println("Connecting to database...")
	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := storage.NewUserRepository(db)

	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			fmt.Fprintf(os.Stderr, "ERROR: No user with email %s - accounts are created at first Google login.\n", email)
			fmt.Fprintf(os.Stderr, "Hint: add the address to ADMIN_EMAILS instead, then log in once.\n")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "ERROR: Failed to look up user: %v\n", err)
		os.Exit(1)
	}

	if user.IsAdmin {
		fmt.Printf("User %s is already an admin, nothing to do\n", email)
	} else {
		if err := users.SetAdminFlag(ctx, email, true); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to promote user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Promoted %s to admin\n", email)
	}

	if defaultKey := os.Getenv("ADMIN_BOOTSTRAP_DEFAULT_KEY"); defaultKey != "" {
		defaults := storage.NewDefaultKeyRepository(db)
		if err := defaults.Set(ctx, defaultKey); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to seed default key config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Seeded default key config")
	}
}

func isValidEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && strings.Contains(email[at:], ".")
}
