package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/smazurov/lightnode/internal/events"
)

// Bridge mirrors event bus traffic onto NATS so the controller that sends
// commands can observe when effects start and finish.
//
//	<prefix>.effect.started
//	<prefix>.effect.finished
//	<prefix>.tone
//	<prefix>.dropped
type Bridge struct {
	publisher *Publisher
	prefix    string
	bus       *events.Bus
	logger    *slog.Logger
	unsubs    []func()
}

// NewBridge creates a bridge publishing under prefix.
func NewBridge(publisher *Publisher, prefix string, bus *events.Bus, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		publisher: publisher,
		prefix:    prefix,
		bus:       bus,
		logger:    logger.With("component", "nats-bridge"),
	}
}

// Start subscribes to the bus.
func (b *Bridge) Start() {
	b.unsubs = append(b.unsubs,
		b.bus.Subscribe(func(e events.EffectStartedEvent) { b.forward("effect.started", e) }),
		b.bus.Subscribe(func(e events.EffectFinishedEvent) { b.forward("effect.finished", e) }),
		b.bus.Subscribe(func(e events.ToneEvent) { b.forward("tone", e) }),
		b.bus.Subscribe(func(e events.CommandDroppedEvent) { b.forward("dropped", e) }),
	)
	b.logger.Info("NATS bridge started", "prefix", b.prefix)
}

// Stop unsubscribes from the bus.
func (b *Bridge) Stop() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	b.logger.Debug("NATS bridge stopped")
}

func (b *Bridge) forward(suffix string, e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	subject := b.prefix + "." + suffix
	if err := b.publisher.Publish(ctx, subject, eventMessage{e}); err != nil {
		b.logger.Debug("Failed to forward event", "subject", subject, "error", err)
	}
}

type eventMessage struct {
	event events.Event
}

func (m eventMessage) Marshal() ([]byte, error) {
	return json.Marshal(m.event)
}
