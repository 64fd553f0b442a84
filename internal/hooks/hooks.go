// Package hooks dispatches perch lifecycle events to registered handlers,
// including user-configured shell commands.
package hooks

import (
	"context"
	"slices"
	"sync"

	"github.com/soyeahso/perch/internal/logging"
)

// Event names for the hook system.
const (
	EventProviderChanged = "provider_changed"
	EventAgentChanged    = "agent_changed"
	EventSyncCompleted   = "sync_completed"
	EventStateSaved      = "state_saved"
	EventGatewayStart    = "gateway_start"
	EventGatewayStop     = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventProviderChanged,
	EventAgentChanged,
	EventSyncCompleted,
	EventStateSaved,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles a hook event.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

type namedHandler struct {
	name    string
	handler Handler
}

// Manager holds hook registrations and dispatches events to them.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

// NewManager creates an empty hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event.
// The name identifies the handler for logging and for Off.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.mu.Unlock()
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.handlers[event][:0]
	for _, h := range m.handlers[event] {
		if h.name != name {
			kept = append(kept, h)
		}
	}
	m.handlers[event] = kept
}

// handlersFor snapshots the handler list for an event so dispatch runs
// without holding the lock.
func (m *Manager) handlersFor(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.handlers[event]) == 0 {
		return nil
	}
	snapshot := make([]namedHandler, len(m.handlers[event]))
	copy(snapshot, m.handlers[event])
	return snapshot
}

func (m *Manager) run(ctx context.Context, h namedHandler, p Payload) {
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}

// Emit runs every handler registered for event, in registration order.
// Handler errors are logged and do not stop the remaining handlers.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	payload := Payload{Event: event, Data: data}
	for _, h := range m.handlersFor(event) {
		m.run(ctx, h, payload)
	}
}

// EmitAsync runs every handler for event on its own goroutine and returns
// immediately. Handler errors are logged.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	payload := Payload{Event: event, Data: data}
	for _, h := range m.handlersFor(event) {
		go m.run(ctx, h, payload)
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events that have at least one handler registered,
// sorted for stable display.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []string
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}
