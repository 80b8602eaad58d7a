package konnected

import (
	"log/slog"
	"sync"

	"gdo-bridge/internal/domain"
)

// Handler receives published events. It runs on the publishing goroutine
// and should not block.
type Handler = func(domain.Event)

// Bus delivers events to subscribers in subscription order. A panicking
// subscriber is logged and skipped; the remaining subscribers still run.
type Bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[domain.EventKind][]Handler
	all      []Handler
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger:   logger,
		handlers: make(map[domain.EventKind][]Handler),
	}
}

// Subscribe registers h for events of the given kind.
func (b *Bus) Subscribe(kind domain.EventKind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// SubscribeAll registers h for every event. Wildcard subscribers run after
// the kind-specific ones.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers ev to every matching subscriber.
func (b *Bus) Publish(ev domain.Event) {
	if ev == nil {
		return
	}

	b.mu.RLock()
	kind := b.handlers[ev.Kind()]
	targets := make([]Handler, 0, len(kind)+len(b.all))
	targets = append(targets, kind...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, h := range targets {
		b.deliver(h, ev)
	}
}

func (b *Bus) deliver(h Handler, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panic recovered",
				"kind", ev.Kind(),
				"panic", r,
			)
		}
	}()
	h(ev)
}
