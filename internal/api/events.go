package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/lightnode/internal/events"
)

// sseBuffer is the per-client event backlog; events beyond it are dropped.
const sseBuffer = 32

// registerSSERoutes registers the event stream.
func (s *Server) registerSSERoutes() {
	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of effect runs, tones, dropped commands and NATS link changes",
		Tags:        []string{"events"},
	}, map[string]any{
		"effect-started":  events.EffectStartedEvent{},
		"effect-finished": events.EffectFinishedEvent{},
		"tone":            events.ToneEvent{},
		"command-dropped": events.CommandDroppedEvent{},
		"connection":      events.ConnectionEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, sseBuffer)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.EffectStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.EffectFinishedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ToneEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CommandDroppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ConnectionEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current link state first, so clients need not wait for a change.
		if err := send.Data(s.connectionSnapshot()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

func (s *Server) connectionSnapshot() events.ConnectionEvent {
	state := "unknown"
	if s.options.Connected != nil {
		state = "disconnected"
		if s.options.Connected() {
			state = "connected"
		}
	}
	return events.ConnectionEvent{State: state, Timestamp: time.Now().Format(time.RFC3339)}
}
