// Package hooks dispatches bot lifecycle events to registered handlers.
package hooks

import (
	"context"
	"sync"

	"github.com/soyeahso/replybot/internal/logging"
)

// Event names.
const (
	EventMentionReceived = "mention_received"
	EventReplySent       = "reply_sent"
	EventMentionSkipped  = "mention_skipped"
	EventUpdatePosted    = "update_posted"
	EventBotStart        = "bot_start"
	EventBotStop         = "bot_stop"
)

// AllEvents lists every event the bot emits.
var AllEvents = []string{
	EventMentionReceived,
	EventReplySent,
	EventMentionSkipped,
	EventUpdatePosted,
	EventBotStart,
	EventBotStop,
}

// Payload is what a handler receives.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler reacts to an event. A returned error is logged and otherwise
// ignored.
type Handler func(ctx context.Context, p Payload) error

// Manager holds handler registrations.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
	inflight sync.WaitGroup
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates an empty manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers handler for event under name.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes every handler called name from event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.handlers[event][:0:0]
	for _, h := range m.handlers[event] {
		if h.name != name {
			kept = append(kept, h)
		}
	}
	m.handlers[event] = kept
}

func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hs := m.handlers[event]
	out := make([]namedHandler, len(hs))
	copy(out, hs)
	return out
}

// Emit runs the handlers for event in registration order and returns when
// they are done.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	p := Payload{Event: event, Data: data}
	for _, h := range m.snapshot(event) {
		m.call(ctx, h, p)
	}
}

// EmitAsync runs the handlers for event in the background. Wait blocks
// until they finish.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}
	p := Payload{Event: event, Data: data}
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		for _, h := range handlers {
			m.call(ctx, h, p)
		}
	}()
}

// Wait blocks until every EmitAsync dispatch has finished.
func (m *Manager) Wait() {
	if m != nil {
		m.inflight.Wait()
	}
}

func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) {
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}

// Count returns how many handlers are registered for event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events that have at least one handler.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	return events
}
