package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(EffectStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event is generic over the concrete type, so switch to it.
	switch e := ev.(type) {
	case EffectStartedEvent:
		event.Publish(b.dispatcher, e)
	case EffectFinishedEvent:
		event.Publish(b.dispatcher, e)
	case ToneEvent:
		event.Publish(b.dispatcher, e)
	case CommandDroppedEvent:
		event.Publish(b.dispatcher, e)
	case ConnectionEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type in its signature and
// returns an unsubscribe function. Unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e ToneEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(EffectStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EffectFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ToneEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CommandDroppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConnectionEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
