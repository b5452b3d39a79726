package notifiers

import (
	"errors"
	"sync/atomic"
	"testing"

	"telemetry_search/events"
)

// mockNotifier is a test notifier that counts calls.
type mockNotifier struct {
	name      string
	callCount int32
	lastEvent events.Event
	notifyErr error
	closeErr  error
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Notify(event events.Event) error {
	atomic.AddInt32(&m.callCount, 1)
	m.lastEvent = event
	return m.notifyErr
}

func (m *mockNotifier) Close() error { return m.closeErr }

func TestManagerRegister(t *testing.T) {
	bus := events.NewBus(false)
	manager := NewManager(bus)
	defer manager.Close()

	if manager.NotifierCount() != 0 {
		t.Errorf("expected 0 notifiers, got %d", manager.NotifierCount())
	}

	mock := &mockNotifier{name: "test"}
	manager.Register(mock)

	if manager.NotifierCount() != 1 {
		t.Errorf("expected 1 notifier, got %d", manager.NotifierCount())
	}
}

func TestManagerRoutesEventsToNotifiers(t *testing.T) {
	bus := events.NewBus(false)
	manager := NewManager(bus)
	defer manager.Close()

	mock1 := &mockNotifier{name: "mock1"}
	mock2 := &mockNotifier{name: "mock2"}
	manager.Register(mock1)
	manager.Register(mock2)

	event := events.NewSavedSearchCreatedEvent("id", "errors", "level:error", "alice", "alice")
	bus.Publish(event)

	if atomic.LoadInt32(&mock1.callCount) != 1 {
		t.Errorf("mock1: expected 1 call, got %d", mock1.callCount)
	}
	if atomic.LoadInt32(&mock2.callCount) != 1 {
		t.Errorf("mock2: expected 1 call, got %d", mock2.callCount)
	}
	if mock2.lastEvent != event {
		t.Error("mock2: expected to receive the published event")
	}
}

func TestManagerContinuesAfterFailure(t *testing.T) {
	bus := events.NewBus(false)
	manager := NewManager(bus)
	defer manager.Close()

	failing := &mockNotifier{name: "failing", notifyErr: errors.New("unreachable")}
	ok := &mockNotifier{name: "ok"}
	manager.Register(failing)
	manager.Register(ok)

	bus.Publish(events.NewSavedSearchDeletedEvent("id", "errors", "level:error", "alice", "bob"))

	if atomic.LoadInt32(&ok.callCount) != 1 {
		t.Errorf("expected second notifier to be called once, got %d", ok.callCount)
	}
}

func TestManagerReceivesAllEventTypes(t *testing.T) {
	bus := events.NewBus(false)
	manager := NewManager(bus)
	defer manager.Close()

	mock := &mockNotifier{name: "test"}
	manager.Register(mock)

	bus.Publish(events.NewSavedSearchCreatedEvent("id", "errors", "level:error", "alice", "alice"))
	bus.Publish(events.NewSavedSearchUpdatedEvent("id", "errors", "level:fatal", "alice", "bob"))
	bus.Publish(events.NewSavedSearchDeletedEvent("id", "errors", "level:fatal", "alice", "bob"))

	if atomic.LoadInt32(&mock.callCount) != 3 {
		t.Errorf("expected 3 calls for all event types, got %d", mock.callCount)
	}
}

func TestManagerCloseUnsubscribes(t *testing.T) {
	bus := events.NewBus(false)
	manager := NewManager(bus)

	mock := &mockNotifier{name: "test"}
	manager.Register(mock)

	manager.Close()

	bus.Publish(events.NewSavedSearchCreatedEvent("id", "errors", "level:error", "alice", "alice"))

	if atomic.LoadInt32(&mock.callCount) != 0 {
		t.Errorf("expected 0 calls after close, got %d", mock.callCount)
	}
}

func TestManagerCloseReturnsNotifierError(t *testing.T) {
	manager := NewManager(events.NewBus(false))
	manager.Register(&mockNotifier{name: "a"})
	manager.Register(&mockNotifier{name: "b", closeErr: errors.New("close failed")})

	if err := manager.Close(); err == nil {
		t.Error("expected close error to be returned")
	}
}
