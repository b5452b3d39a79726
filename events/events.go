// Package events provides an in-process publish-subscribe bus for saved search
// lifecycle events. Producers (the saved search store) never know who listens
// (the websocket hub, notifiers, metrics).
package events

import (
	"sync"
	"time"
)

// EventType represents the type of an event.
type EventType string

const (
	// SavedSearchCreated is emitted when a saved search is stored for the first time.
	SavedSearchCreated EventType = "saved_search_created"
	// SavedSearchUpdated is emitted when a saved search's name or query changes.
	SavedSearchUpdated EventType = "saved_search_updated"
	// SavedSearchDeleted is emitted when a saved search is removed.
	SavedSearchDeleted EventType = "saved_search_deleted"
)

// AllEventTypes lists every event type the bus carries.
var AllEventTypes = []EventType{SavedSearchCreated, SavedSearchUpdated, SavedSearchDeleted}

// Event represents something that happened in the system.
type Event interface {
	// Type returns the event type.
	Type() EventType
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common event fields.
type baseEvent struct {
	eventType EventType
	timestamp time.Time
}

func (e *baseEvent) Type() EventType      { return e.eventType }
func (e *baseEvent) Timestamp() time.Time { return e.timestamp }

// SavedSearchEvent describes a change to a saved search.
type SavedSearchEvent struct {
	baseEvent
	ID    string // Saved search ID
	Name  string // Display name after the change (before it, for deletes)
	Query string // Canonical query text
	Owner string // User that owns the search
	Actor string // User that made the change, empty for unauthenticated access
}

func newSavedSearchEvent(eventType EventType, id, name, query, owner, actor string) *SavedSearchEvent {
	return &SavedSearchEvent{
		baseEvent: baseEvent{
			eventType: eventType,
			timestamp: time.Now(),
		},
		ID:    id,
		Name:  name,
		Query: query,
		Owner: owner,
		Actor: actor,
	}
}

// NewSavedSearchCreatedEvent creates a new saved search created event.
func NewSavedSearchCreatedEvent(id, name, query, owner, actor string) *SavedSearchEvent {
	return newSavedSearchEvent(SavedSearchCreated, id, name, query, owner, actor)
}

// NewSavedSearchUpdatedEvent creates a new saved search updated event.
func NewSavedSearchUpdatedEvent(id, name, query, owner, actor string) *SavedSearchEvent {
	return newSavedSearchEvent(SavedSearchUpdated, id, name, query, owner, actor)
}

// NewSavedSearchDeletedEvent creates a new saved search deleted event.
func NewSavedSearchDeletedEvent(id, name, query, owner, actor string) *SavedSearchEvent {
	return newSavedSearchEvent(SavedSearchDeleted, id, name, query, owner, actor)
}

// Handler is a function that handles an event.
type Handler func(event Event)

// Subscription represents a subscription to events.
type Subscription struct {
	id        int
	eventType EventType
	handler   Handler
	bus       *Bus
}

// Unsubscribe removes this subscription from the event bus.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s)
}

// Bus is a thread-safe event bus for publishing and subscribing to events.
type Bus struct {
	mu           sync.RWMutex
	handlers     map[EventType]map[int]*Subscription
	nextID       int
	asyncPublish bool // If true, handlers are called in goroutines
}

// NewBus creates a new event bus.
// If asyncPublish is true, event handlers are called asynchronously in goroutines.
func NewBus(asyncPublish bool) *Bus {
	return &Bus{
		handlers:     make(map[EventType]map[int]*Subscription),
		asyncPublish: asyncPublish,
	}
}

// Subscribe registers a handler for a specific event type.
// Returns a Subscription that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType EventType, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[int]*Subscription)
	}

	b.nextID++
	sub := &Subscription{
		id:        b.nextID,
		eventType: eventType,
		handler:   handler,
		bus:       b,
	}
	b.handlers[eventType][sub.id] = sub
	return sub
}

// SubscribeAll registers a handler for every event type in AllEventTypes.
func (b *Bus) SubscribeAll(handler Handler) []*Subscription {
	subs := make([]*Subscription, len(AllEventTypes))
	for i, et := range AllEventTypes {
		subs[i] = b.Subscribe(et, handler)
	}
	return subs
}

// unsubscribe removes a subscription from the bus.
func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[sub.eventType]; ok {
		delete(handlers, sub.id)
	}
}

// Publish sends an event to all subscribed handlers. A nil bus drops the event.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := b.handlers[event.Type()]
	// Copy so the lock is not held while handlers run
	handlersCopy := make([]Handler, 0, len(handlers))
	for _, sub := range handlers {
		handlersCopy = append(handlersCopy, sub.handler)
	}
	b.mu.RUnlock()

	for _, handler := range handlersCopy {
		if b.asyncPublish {
			go handler(event)
		} else {
			handler(event)
		}
	}
}

// HandlerCount returns the total number of subscribed handlers.
func (b *Bus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, handlers := range b.handlers {
		count += len(handlers)
	}
	return count
}
