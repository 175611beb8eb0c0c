package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"chatgateway/internal/auth"
	"chatgateway/internal/config"
	"chatgateway/internal/models"
)

func newAuthFixture(users *mockUserStore, oauth *mockOAuth, states *mockStateStore) (*AuthHandler, *auth.TokenCodec) {
	cfg := &config.Config{
		FrontendURL: "http://localhost:3000",
		AdminEmails: []string{"root@example.com"},
	}
	codec := auth.NewTokenCodec([]byte("auth-handler-test-secret"))
	return NewAuthHandler(oauth, states, users, codec, cfg), codec
}

func TestLoginRedirect(t *testing.T) {
	states := newMockStateStore("nonce-1")
	handler, _ := newAuthFixture(newMockUserStore(), &mockOAuth{}, states)

	req := httptest.NewRequest(http.MethodGet, "/api/login/google", nil)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	location := rec.Header().Get("Location")
	if !strings.Contains(location, "state=nonce-1") {
		t.Errorf("redirect %q does not carry the issued state", location)
	}
}

func TestCallback(t *testing.T) {
	users := newMockUserStore()
	oauth := &mockOAuth{identity: &auth.GoogleUser{
		Sub:     "google-sub-1",
		Email:   "root@example.com",
		Name:    "Root",
		Picture: "https://example.com/root.png",
	}}
	states := newMockStateStore("nonce-1")
	handler, codec := newAuthFixture(users, oauth, states)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?state=nonce-1&code=auth-code", nil)
	rec := httptest.NewRecorder()
	handler.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusFound, rec.Body.String())
	}

	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect location: %v", err)
	}
	if !strings.HasPrefix(location.String(), "http://localhost:3000") {
		t.Errorf("redirect = %q, want the frontend URL", location)
	}

	token := location.Query().Get("token")
	if token == "" {
		t.Fatal("redirect carries no token")
	}
	claims, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("issued token does not decode: %v", err)
	}
	if claims.Email != "root@example.com" {
		t.Errorf("token email = %q, want root@example.com", claims.Email)
	}

	// The account was created on this login, so the allow-list applies.
	created, err := users.GetByEmail(nil, "root@example.com")
	if err != nil {
		t.Fatalf("user was not created: %v", err)
	}
	if !created.IsAdmin {
		t.Error("allow-listed email should create an admin account")
	}
	if created.ID.String() != claims.UserID {
		t.Errorf("token user_id = %q, want %q", claims.UserID, created.ID)
	}
}

func TestCallbackKeepsStoredAdminFlag(t *testing.T) {
	// The allow-list must not re-promote a user who was demoted after signup.
	users := newMockUserStore(&models.User{
		Email:   "root@example.com",
		Name:    "Original Name",
		IsAdmin: false,
	})
	oauth := &mockOAuth{identity: &auth.GoogleUser{Email: "root@example.com", Name: "Root"}}
	states := newMockStateStore("nonce-1")
	handler, _ := newAuthFixture(users, oauth, states)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?state=nonce-1&code=auth-code", nil)
	rec := httptest.NewRecorder()
	handler.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusFound, rec.Body.String())
	}
	stored, _ := users.GetByEmail(nil, "root@example.com")
	if stored.IsAdmin {
		t.Error("login must not re-promote a demoted user")
	}
	// A repeat login only bumps last_login; the stored profile stays.
	if stored.Name != "Original Name" {
		t.Errorf("Name = %q after repeat login, want %q", stored.Name, "Original Name")
	}
}

func TestCallbackRejectsBadState(t *testing.T) {
	states := newMockStateStore("nonce-1")
	handler, _ := newAuthFixture(newMockUserStore(), &mockOAuth{}, states)

	tests := []struct {
		name  string
		query string
	}{
		{"unknown state", "state=wrong&code=auth-code"},
		{"missing state", "code=auth-code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/google?"+tt.query, nil)
			rec := httptest.NewRecorder()
			handler.Callback(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}

	t.Run("state is single use", func(t *testing.T) {
		first := httptest.NewRequest(http.MethodGet, "/auth/google?state=nonce-1", nil)
		rec := httptest.NewRecorder()
		handler.Callback(rec, first) // consumes the nonce, fails on missing code

		replay := httptest.NewRequest(http.MethodGet, "/auth/google?state=nonce-1&code=auth-code", nil)
		rec = httptest.NewRecorder()
		handler.Callback(rec, replay)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d on replayed state", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestCallbackMissingCode(t *testing.T) {
	states := newMockStateStore("nonce-1")
	handler, _ := newAuthFixture(newMockUserStore(), &mockOAuth{}, states)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?state=nonce-1", nil)
	rec := httptest.NewRecorder()
	handler.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
