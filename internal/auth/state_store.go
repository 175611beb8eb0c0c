package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound is returned when an OAuth state nonce is unknown, already
// consumed, or expired
var ErrStateNotFound = errors.New("oauth state not found")

// StateStore keeps short-lived OAuth CSRF state nonces in Redis. Each nonce
// is single use.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore creates a state store with the given nonce lifetime
func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{
		client: client,
		ttl:    ttl,
	}
}

func stateKey(state string) string {
	return "oauth:state:" + state
}

// Issue creates and stores a fresh state nonce
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := s.client.Set(ctx, stateKey(state), "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return state, nil
}

// Consume validates and deletes a state nonce in one step
func (s *StateStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return ErrStateNotFound
	}

	_, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if err == redis.Nil {
		return ErrStateNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return nil
}
