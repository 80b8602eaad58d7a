package mqtt

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gdo-bridge/internal/domain"
)

const outboxSize = 64

// Publisher is the part of Client the bridge needs.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
}

// CommandExecutor runs commands received on command topics.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd domain.Command) error
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// Bridge mirrors device events onto MQTT and feeds command topics back to
// the device. HandleEvent never blocks; messages are queued and published
// by Run.
type Bridge struct {
	pub      Publisher
	executor CommandExecutor
	topics   Topics
	logger   *slog.Logger
	now      func() time.Time

	outbox chan message
}

func NewBridge(pub Publisher, executor CommandExecutor, topics Topics, logger *slog.Logger) *Bridge {
	return &Bridge{
		pub:      pub,
		executor: executor,
		topics:   topics,
		logger:   logger,
		now:      time.Now,
		outbox:   make(chan message, outboxSize),
	}
}

// Run subscribes to the command topics and publishes queued messages until
// ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	err := b.pub.Subscribe(b.topics.CommandFilter(), func(topic string, payload []byte) error {
		return b.handleCommand(ctx, topic, payload)
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.outbox:
			if err := b.pub.Publish(msg.topic, msg.payload, msg.retained); err != nil {
				b.logger.Warn("mqtt publish failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

// HandleEvent queues ev for publication.
func (b *Bridge) HandleEvent(ev domain.Event) {
	if a, ok := ev.(domain.AvailabilityEvent); ok {
		payload := PayloadOffline
		if a.Available {
			payload = PayloadOnline
		}
		b.enqueue(message{topic: b.topics.Availability(), payload: []byte(payload), retained: true})
		return
	}

	payload, retained, ok, err := encodeEvent(ev, b.now())
	if err != nil {
		b.logger.Warn("encoding event", "error", err)
		return
	}
	if !ok {
		return
	}
	b.enqueue(message{topic: b.topics.State(ev.Kind()), payload: payload, retained: retained})
}

func (b *Bridge) enqueue(msg message) {
	select {
	case b.outbox <- msg:
	default:
		b.logger.Warn("mqtt outbox full, dropping message", "topic", msg.topic)
	}
}

func (b *Bridge) handleCommand(ctx context.Context, topic string, payload []byte) error {
	target, ok := b.topics.commandTarget(topic)
	if !ok {
		return nil
	}

	cmd, err := parseCommand(target, payload)
	if err != nil {
		return err
	}
	cmd.ID = uuid.NewString()

	return b.executor.Execute(ctx, cmd)
}
