package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"chatgateway/internal/auth"
	"chatgateway/internal/middleware"
	"chatgateway/internal/models"
	"chatgateway/internal/storage"
)

// mockUserStore is an in-memory UserStore keyed by email.
type mockUserStore struct {
	users map[string]*models.User
}

func newMockUserStore(users ...*models.User) *mockUserStore {
	store := &mockUserStore{users: make(map[string]*models.User)}
	for _, u := range users {
		store.users[u.Email] = u
	}
	return store
}

func (m *mockUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserStore) UpsertLogin(_ context.Context, profile models.LoginProfile) (*models.User, error) {
	// On conflict the real query bumps last_login and nothing else.
	if u, ok := m.users[profile.Email]; ok {
		u.LastLogin = time.Now().UTC()
		copied := *u
		return &copied, nil
	}
	u := &models.User{
		ID:        uuid.New(),
		Email:     profile.Email,
		Name:      profile.Name,
		Picture:   profile.Picture,
		IsAdmin:   profile.IsAdmin,
		CreatedAt: time.Now().UTC(),
		LastLogin: time.Now().UTC(),
	}
	m.users[profile.Email] = u
	copied := *u
	return &copied, nil
}

func (m *mockUserStore) SetAdminFlag(_ context.Context, email string, isAdmin bool) error {
	u, ok := m.users[email]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.IsAdmin = isAdmin
	return nil
}

func (m *mockUserStore) SetPersonalKey(_ context.Context, email string, key *string) error {
	u, ok := m.users[email]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.APIKey = key
	return nil
}

func (m *mockUserStore) List(_ context.Context) ([]*storage.ListedUser, error) {
	listed := make([]*storage.ListedUser, 0, len(m.users))
	for _, u := range m.users {
		listed = append(listed, &storage.ListedUser{
			ID:             u.ID,
			Email:          u.Email,
			Name:           u.Name,
			Picture:        u.Picture,
			IsAdmin:        u.IsAdmin,
			HasPersonalKey: u.HasPersonalKey(),
			CreatedAt:      u.CreatedAt,
			LastLogin:      u.LastLogin,
		})
	}
	sort.Slice(listed, func(i, j int) bool { return listed[i].Email < listed[j].Email })
	return listed, nil
}

func (m *mockUserStore) Count(_ context.Context) (int, error) {
	return len(m.users), nil
}

// mockChatStore is an in-memory ChatStore.
type mockChatStore struct {
	records []*models.ChatRecord
}

func (m *mockChatStore) Insert(_ context.Context, record *models.ChatRecord) error {
	record.ChatID = uuid.New()
	record.Timestamp = time.Now().UTC()
	copied := *record
	m.records = append(m.records, &copied)
	return nil
}

func (m *mockChatStore) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*models.ChatRecord, error) {
	var out []*models.ChatRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].UserID == userID {
			copied := *m.records[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockChatStore) Count(_ context.Context) (int, error) {
	return len(m.records), nil
}

// mockDefaultKeyStore holds at most one default key config.
type mockDefaultKeyStore struct {
	cfg *models.DefaultKeyConfig
}

func (m *mockDefaultKeyStore) Get(_ context.Context) (*models.DefaultKeyConfig, error) {
	if m.cfg == nil {
		return nil, storage.ErrDefaultKeyNotFound
	}
	copied := *m.cfg
	return &copied, nil
}

func (m *mockDefaultKeyStore) Set(_ context.Context, apiKey string) error {
	m.cfg = &models.DefaultKeyConfig{APIKey: apiKey, UpdatedAt: time.Now().UTC()}
	return nil
}

// mockRelay returns a canned reply or a canned failure.
type mockRelay struct {
	response string
	err      error

	lastKey     string
	lastMessage string
}

func (m *mockRelay) Complete(_ context.Context, apiKey, message string) (string, error) {
	m.lastKey = apiKey
	m.lastMessage = message
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// mockOAuth implements the provider handshake without the network.
type mockOAuth struct {
	identity *auth.GoogleUser
	err      error
}

func (m *mockOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (m *mockOAuth) Exchange(_ context.Context, code string) (*auth.GoogleUser, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.identity, nil
}

// mockStateStore issues a fixed nonce and tracks what was consumed.
type mockStateStore struct {
	state    string
	consumed map[string]bool
}

func newMockStateStore(state string) *mockStateStore {
	return &mockStateStore{state: state, consumed: make(map[string]bool)}
}

func (m *mockStateStore) Issue(_ context.Context) (string, error) {
	return m.state, nil
}

func (m *mockStateStore) Consume(_ context.Context, state string) error {
	if state != m.state || m.consumed[state] {
		return auth.ErrStateNotFound
	}
	m.consumed[state] = true
	return nil
}

// serveAs runs the handler with the given user already authenticated.
func serveAs(t *testing.T, handler http.HandlerFunc, user *models.User, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	ctx := context.WithValue(req.Context(), middleware.CurrentUserKey, user)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func strPtr(s string) *string {
	return &s
}
