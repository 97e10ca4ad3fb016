package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch for SSE select loops.
// Events are dropped when ch is full so a slow client never blocks a run.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
