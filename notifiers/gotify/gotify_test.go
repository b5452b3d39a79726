package gotify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gotify/go-api-client/v2/gotify"
	"github.com/gotify/go-api-client/v2/models"

	"telemetry_search/config"
	"telemetry_search/events"
)

// newTestNotifier creates a Notifier connected to a test server.
// The handler receives the MessageExternal that was sent.
func newTestNotifier(t *testing.T, handler func(*models.MessageExternal)) (*Notifier, *httptest.Server) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Gotify client uses POST /message with X-Gotify-Key header
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/message" {
			t.Errorf("expected /message path, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Gotify-Key") != "test-token" {
			t.Errorf("expected X-Gotify-Key header 'test-token', got '%s'", r.Header.Get("X-Gotify-Key"))
		}

		var msg models.MessageExternal
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("failed to decode message: %v", err)
		}

		if handler != nil {
			handler(&msg)
		}

		// Return a valid response
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(&models.MessageExternal{ID: 1})
	}))

	parsedURL, _ := url.Parse(server.URL)
	notifier := &Notifier{
		client:   gotify.NewClient(parsedURL, server.Client()),
		token:    "test-token",
		hostname: server.URL,
		priority: PriorityNormal,
	}

	return notifier, server
}

func TestNew_NilConfig(t *testing.T) {
	n := New(nil)
	if n != nil {
		t.Error("expected nil notifier for nil config")
	}
}

func TestNew_DisabledConfig(t *testing.T) {
	cfg := &config.GotifyConfig{
		Enabled:  false,
		Hostname: "https://gotify.example.com",
		Token:    "test-token",
	}
	n := New(cfg)
	if n != nil {
		t.Error("expected nil notifier for disabled config")
	}
}

func TestNew_IncompleteConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.GotifyConfig
	}{
		{
			name: "missing hostname",
			cfg:  &config.GotifyConfig{Enabled: true, Token: "token"},
		},
		{
			name: "missing token",
			cfg:  &config.GotifyConfig{Enabled: true, Hostname: "https://gotify.example.com"},
		},
		{
			name: "empty config",
			cfg:  &config.GotifyConfig{Enabled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(tt.cfg)
			if n != nil {
				t.Error("expected nil notifier for incomplete config")
			}
		})
	}
}

func TestNew_ValidConfig(t *testing.T) {
	cfg := &config.GotifyConfig{
		Enabled:  true,
		Hostname: "https://gotify.example.com",
		Token:    "test-token",
	}
	n := New(cfg)
	if n == nil {
		t.Fatal("expected non-nil notifier for valid config")
	}
	if n.Name() != "gotify" {
		t.Errorf("expected name 'gotify', got '%s'", n.Name())
	}
}

func TestNew_TrailingSlashRemoved(t *testing.T) {
	cfg := &config.GotifyConfig{
		Enabled:  true,
		Hostname: "https://gotify.example.com/",
		Token:    "test-token",
	}
	n := New(cfg)
	if n == nil {
		t.Fatal("expected non-nil notifier")
	}
	if n.hostname != "https://gotify.example.com" {
		t.Errorf("expected trailing slash removed, got '%s'", n.hostname)
	}
}

func TestNew_Priority(t *testing.T) {
	tests := []struct {
		priority int
		want     int
	}{
		{0, PriorityNormal},
		{-1, PriorityNormal},
		{11, PriorityNormal},
		{PriorityLow, PriorityLow},
		{PriorityMax, PriorityMax},
	}

	for _, tt := range tests {
		n := New(&config.GotifyConfig{
			Enabled:  true,
			Hostname: "https://gotify.example.com",
			Token:    "test-token",
			Priority: tt.priority,
		})
		if n.priority != tt.want {
			t.Errorf("priority %d: expected %d, got %d", tt.priority, tt.want, n.priority)
		}
	}
}

func TestNotify_SavedSearchCreated(t *testing.T) {
	var receivedMsg *models.MessageExternal

	n, server := newTestNotifier(t, func(msg *models.MessageExternal) {
		receivedMsg = msg
	})
	defer server.Close()

	event := events.NewSavedSearchCreatedEvent("id", "Chrome errors", "browser:Chrome AND level:error", "alice", "alice")
	err := n.Notify(event)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if receivedMsg == nil {
		t.Fatal("expected message to be sent")
	}
	if !strings.Contains(receivedMsg.Title, `"Chrome errors" created`) {
		t.Errorf("unexpected title %q", receivedMsg.Title)
	}
	if !strings.Contains(receivedMsg.Message, "browser:Chrome AND level:error") {
		t.Errorf("expected query in message, got %q", receivedMsg.Message)
	}
	if !strings.Contains(receivedMsg.Message, "by alice") {
		t.Errorf("expected actor in message, got %q", receivedMsg.Message)
	}
	if receivedMsg.Priority != PriorityNormal {
		t.Errorf("expected priority %d, got %d", PriorityNormal, receivedMsg.Priority)
	}
}

func TestNotify_SavedSearchUpdated_AnonymousActor(t *testing.T) {
	var receivedMsg *models.MessageExternal

	n, server := newTestNotifier(t, func(msg *models.MessageExternal) {
		receivedMsg = msg
	})
	defer server.Close()

	n.Notify(events.NewSavedSearchUpdatedEvent("id", "errors", "level:fatal", "alice", ""))

	if receivedMsg == nil {
		t.Fatal("expected message to be sent")
	}
	if !strings.Contains(receivedMsg.Message, "updated by anonymous") {
		t.Errorf("unexpected message %q", receivedMsg.Message)
	}
}

func TestNotify_SavedSearchDeleted_HighPriority(t *testing.T) {
	var receivedMsg *models.MessageExternal

	n, server := newTestNotifier(t, func(msg *models.MessageExternal) {
		receivedMsg = msg
	})
	defer server.Close()

	n.Notify(events.NewSavedSearchDeletedEvent("id", "errors", "level:error", "alice", "bob"))

	if receivedMsg == nil {
		t.Fatal("expected message to be sent")
	}
	if receivedMsg.Priority != PriorityHigh {
		t.Errorf("expected priority %d for deletion, got %d", PriorityHigh, receivedMsg.Priority)
	}
}

func TestNotify_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "internal error"})
	}))
	defer server.Close()

	parsedURL, _ := url.Parse(server.URL)
	n := &Notifier{
		client:   gotify.NewClient(parsedURL, server.Client()),
		token:    "test-token",
		hostname: server.URL,
	}

	event := events.NewSavedSearchCreatedEvent("id", "errors", "level:error", "alice", "alice")
	err := n.Notify(event)
	if err == nil {
		t.Error("expected error for server error response")
	}
}

func TestNotify_ConnectionError(t *testing.T) {
	// Create a notifier pointing to a non-existent server
	parsedURL, _ := url.Parse("http://localhost:99999")
	n := &Notifier{
		client:   gotify.NewClient(parsedURL, http.DefaultClient),
		token:    "test-token",
		hostname: "http://localhost:99999",
	}

	event := events.NewSavedSearchCreatedEvent("id", "errors", "level:error", "alice", "alice")
	err := n.Notify(event)
	if err == nil {
		t.Error("expected error for connection failure")
	}
}

func TestClose(t *testing.T) {
	cfg := &config.GotifyConfig{
		Enabled:  true,
		Hostname: "https://gotify.example.com",
		Token:    "test-token",
	}
	n := New(cfg)

	// Close should succeed without error
	if err := n.Close(); err != nil {
		t.Errorf("unexpected error from Close: %v", err)
	}
}

func TestSendTest(t *testing.T) {
	var receivedMsg *models.MessageExternal

	n, server := newTestNotifier(t, func(msg *models.MessageExternal) {
		receivedMsg = msg
	})
	defer server.Close()

	err := n.SendTest()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if receivedMsg == nil {
		t.Fatal("expected test message to be sent")
	}
	if receivedMsg.Title == "" {
		t.Error("expected non-empty title in test message")
	}
}
