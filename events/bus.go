package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler receives a published event. It runs synchronously on the
// Session's single cooperative goroutine per the concurrency model, so
// handlers must not block.
type Handler func(event any)

// Bus is a typed in-process publish/subscribe registry, one per Session.
// It plays the role teacher's events.Builder plays for externally
// published events, but dispatches in-process instead of handing a
// serialized record to a broker.
type Bus struct {
	mu   sync.RWMutex
	subs map[Name][]Handler
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Name][]Handler)}
}

// On registers a handler for a named event. Returns an unsubscribe func.
func (b *Bus) On(name Name, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], h)
	idx := len(b.subs[name]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		handlers := b.subs[name]
		if idx < len(handlers) {
			handlers[idx] = nil
		}
	}
}

// Emit delivers event to every handler registered for name, in
// registration order. Emit never recovers a handler panic: per the
// cooperative concurrency model a misbehaving subscriber is a bug in the
// embedding application, not something the core should mask.
func (b *Bus) Emit(name Name, event any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subs[name]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		if h != nil {
			h(event)
		}
	}
}

// NewBase stamps a fresh Base for callID, the in-process analogue of
// teacher's Builder.newBase.
func NewBase(callID string) Base {
	return Base{ID: uuid.New().String(), Time: time.Now().UTC(), CallID: callID}
}
