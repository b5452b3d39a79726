// Package gotify sends saved search change notifications through the official Gotify API client.
package gotify

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gotify/go-api-client/v2/auth"
	"github.com/gotify/go-api-client/v2/client"
	"github.com/gotify/go-api-client/v2/client/message"
	"github.com/gotify/go-api-client/v2/gotify"
	"github.com/gotify/go-api-client/v2/models"

	"telemetry_search/config"
	"telemetry_search/events"
)

// Priority levels for Gotify messages.
const (
	PriorityMin    = 0  // Minimum priority (no notification)
	PriorityLow    = 2  // Low priority
	PriorityNormal = 5  // Normal priority
	PriorityHigh   = 8  // High priority (notification sound)
	PriorityMax    = 10 // Maximum priority (persistent notification)
)

// Message represents a Gotify message (used for internal formatting).
type Message struct {
	Title    string
	Message  string
	Priority int
}

// Notifier implements the notifiers.Notifier interface for Gotify.
type Notifier struct {
	client   *client.GotifyREST
	token    string
	hostname string // kept for testing/logging
	priority int    // base priority for created and updated searches
}

// New creates a new Gotify notifier from configuration.
// Returns nil if Gotify is not configured or disabled.
func New(cfg *config.GotifyConfig) *Notifier {
	if cfg == nil || !cfg.IsValid() {
		return nil
	}

	hostname := strings.TrimSuffix(cfg.Hostname, "/")
	parsedURL, err := url.Parse(hostname)
	if err != nil {
		log.Printf("Gotify: failed to parse URL: %v", err)
		return nil
	}

	priority := cfg.Priority
	if priority <= 0 || priority > PriorityMax {
		priority = PriorityNormal
	}

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	return &Notifier{
		client:   gotify.NewClient(parsedURL, httpClient),
		token:    cfg.Token,
		hostname: hostname,
		priority: priority,
	}
}

// Name returns the notifier's name.
func (n *Notifier) Name() string {
	return "gotify"
}

// Notify sends a notification for the given event.
func (n *Notifier) Notify(event events.Event) error {
	msg := n.formatEvent(event)
	if msg == nil {
		return nil
	}

	return n.send(msg)
}

// formatEvent converts an event into a Gotify message.
// Returns nil for events that shouldn't generate notifications.
func (n *Notifier) formatEvent(event events.Event) *Message {
	e, ok := event.(*events.SavedSearchEvent)
	if !ok {
		return nil
	}

	var verb, emoji string
	priority := n.priority
	switch e.Type() {
	case events.SavedSearchCreated:
		verb, emoji = "created", "🆕"
	case events.SavedSearchUpdated:
		verb, emoji = "updated", "✏️"
	case events.SavedSearchDeleted:
		verb, emoji = "deleted", "🗑️"
		priority = PriorityHigh
	default:
		return nil
	}

	actor := e.Actor
	if actor == "" {
		actor = "anonymous"
	}

	return &Message{
		Title:    fmt.Sprintf("%s Saved search %q %s", emoji, e.Name, verb),
		Message:  fmt.Sprintf("%s by %s\n%s", verb, actor, e.Query),
		Priority: priority,
	}
}

// send sends a message to Gotify using the official API client.
func (n *Notifier) send(msg *Message) error {
	params := message.NewCreateMessageParams()
	params.Body = &models.MessageExternal{
		Title:    msg.Title,
		Message:  msg.Message,
		Priority: msg.Priority,
	}

	_, err := n.client.Message.CreateMessage(params, auth.TokenAuth(n.token))
	if err != nil {
		log.Printf("Gotify notification failed: %v", err)
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}

// Close releases resources held by the notifier.
func (n *Notifier) Close() error {
	return nil
}

// SendTest sends a test notification to verify connectivity.
func (n *Notifier) SendTest() error {
	msg := &Message{
		Title:    "🔔 Telemetry Search",
		Message:  "Test notification - Gotify is configured correctly!",
		Priority: PriorityNormal,
	}
	return n.send(msg)
}
