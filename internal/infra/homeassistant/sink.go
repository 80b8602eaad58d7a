package homeassistant

import (
	"context"
	"log/slog"

	"gdo-bridge/internal/domain"
)

const queueSize = 64

// StateWriter is the part of Client the sink needs.
type StateWriter interface {
	SetState(ctx context.Context, s EntityState) error
}

// Sink mirrors device events into Home Assistant entities. HandleEvent
// never blocks; states are written by Run.
type Sink struct {
	writer StateWriter
	device string
	logger *slog.Logger
	queue  chan EntityState
}

func NewSink(writer StateWriter, device string, logger *slog.Logger) *Sink {
	return &Sink{
		writer: writer,
		device: device,
		logger: logger,
		queue:  make(chan EntityState, queueSize),
	}
}

func (s *Sink) HandleEvent(ev domain.Event) {
	state, ok := entityStateFor(ev, s.device)
	if !ok {
		return
	}

	select {
	case s.queue <- state:
	default:
		s.logger.Warn("home assistant queue full, dropping state", "entity", state.EntityID)
	}
}

// Run writes queued states until ctx is done.
func (s *Sink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state := <-s.queue:
			if err := s.writer.SetState(ctx, state); err != nil {
				s.logger.Warn("updating home assistant", "entity", state.EntityID, "error", err)
			}
		}
	}
}
