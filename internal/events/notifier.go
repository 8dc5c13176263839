// Package events is a minimal in-process notification bus. The engine emits
// fire-and-forget events; no subscribers are required for the core to work.
package events

import (
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	ReignApplied = "reign_applied"
)

type Event struct {
	ID      string
	Name    string
	Payload any
}

type Handler func(Event)

type Notifier struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

func NewNotifier(logger zerolog.Logger) *Notifier {
	return &Notifier{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

func (n *Notifier) Subscribe(name string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[name] = append(n.handlers[name], h)
}

// Emit delivers the event to current subscribers. A panicking subscriber is
// logged and does not disturb the emitting pipeline.
func (n *Notifier) Emit(name string, payload any) {
	id, err := gonanoid.New()
	if err != nil {
		id = "unknown"
	}
	ev := Event{ID: id, Name: name, Payload: payload}

	n.mu.RLock()
	handlers := n.handlers[name]
	n.mu.RUnlock()

	n.logger.Debug().Str("event", name).Str("event_id", id).Int("subscribers", len(handlers)).Msg("emitting event")
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					n.logger.Error().Str("event", name).Any("panic", r).Msg("event subscriber panicked")
				}
			}()
			h(ev)
		}()
	}
}
