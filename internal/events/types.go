package events

// Event type constants for kelindar/event.
const (
	TypeEffectStarted uint32 = iota + 1
	TypeEffectFinished
	TypeTone
	TypeCommandDropped
	TypeConnection
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Effect run outcomes reported in EffectFinishedEvent.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// EffectStartedEvent is published when the engine launches a run.
type EffectStartedEvent struct {
	RunID     string  `json:"run_id" example:"3f1c2a9e-7c55-4b6e-9a53-0f3e1d2b7a10" doc:"Effect run identifier"`
	Pattern   string  `json:"pattern" example:"blink" doc:"Pattern name"`
	Red       float64 `json:"red" example:"1" doc:"Red intensity 0-1"`
	Green     float64 `json:"green" example:"0" doc:"Green intensity 0-1"`
	Blue      float64 `json:"blue" example:"0" doc:"Blue intensity 0-1"`
	Times     int     `json:"times" example:"3" doc:"Repeat count, 999 or more repeats until cancelled"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EffectStartedEvent.
func (e EffectStartedEvent) Type() uint32 { return TypeEffectStarted }

// EffectFinishedEvent is published when a run exits.
type EffectFinishedEvent struct {
	RunID     string `json:"run_id" example:"3f1c2a9e-7c55-4b6e-9a53-0f3e1d2b7a10" doc:"Effect run identifier"`
	Pattern   string `json:"pattern" example:"blink" doc:"Pattern name"`
	Outcome   string `json:"outcome" example:"completed" doc:"completed, cancelled or failed"`
	Error     string `json:"error,omitempty" doc:"Hardware error for failed runs"`
	Elapsed   string `json:"elapsed" example:"600ms" doc:"Run duration"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EffectFinishedEvent.
func (e EffectFinishedEvent) Type() uint32 { return TypeEffectFinished }

// ToneEvent is published when a beep starts.
type ToneEvent struct {
	Frequency float64 `json:"frequency" example:"1000" doc:"Tone frequency in Hz"`
	Duration  string  `json:"duration" example:"500ms" doc:"Tone duration"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ToneEvent.
func (e ToneEvent) Type() uint32 { return TypeTone }

// CommandDroppedEvent is published when an inbound payload cannot be decoded.
type CommandDroppedEvent struct {
	Subject   string `json:"subject" example:"claude.led" doc:"Subject the payload arrived on"`
	Reason    string `json:"reason" doc:"Decode error"`
	Size      int    `json:"size" example:"12" doc:"Payload size in bytes"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CommandDroppedEvent.
func (e CommandDroppedEvent) Type() uint32 { return TypeCommandDropped }

// ConnectionEvent reports NATS connection state changes.
type ConnectionEvent struct {
	State     string `json:"state" example:"connected" doc:"connected, disconnected or reconnected"`
	URL       string `json:"url" example:"nats://127.0.0.1:4222" doc:"Server URL"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConnectionEvent.
func (e ConnectionEvent) Type() uint32 { return TypeConnection }
