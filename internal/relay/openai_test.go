package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatgateway/internal/config"
)

func testClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(config.UpstreamConfig{
		BaseURL:        baseURL,
		Model:          "gpt-4o",
		SystemPrompt:   "You are a helpful assistant.",
		RequestTimeout: timeout,
	})
}

func TestCompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want Bearer sk-test", got)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("model = %q, want gpt-4o", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 5*time.Second)
	defer client.Close()

	response, err := client.Complete(context.Background(), "sk-test", "hello")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if response != "hi there" {
		t.Errorf("Complete() = %q, want %q", response, "hi there")
	}
}

func TestCompleteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 5*time.Second)
	defer client.Close()

	_, err := client.Complete(context.Background(), "sk-bad", "hello")
	if err == nil {
		t.Fatal("Complete() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("Complete() error = %v, want upstream status in message", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 5*time.Second)
	defer client.Close()

	_, err := client.Complete(context.Background(), "sk-test", "hello")
	if err == nil {
		t.Fatal("Complete() error = nil, want error")
	}
}

func TestCompleteTimeout(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	client := testClient(server.URL, 5*time.Second)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Complete(ctx, "sk-test", "hello")
	if err == nil {
		t.Fatal("Complete() error = nil, want timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Complete() took %v, expected the context deadline to cut it short", elapsed)
	}
}
