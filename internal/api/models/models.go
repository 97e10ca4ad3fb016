package models

import (
	"github.com/smazurov/lightnode/internal/gpio"
	"github.com/smazurov/lightnode/internal/logging"
	"github.com/smazurov/lightnode/internal/nats"
)

// LEDCommand is the body of POST /api/led. Omitted fields take the same
// defaults the daemon applies to NATS payloads.
type LEDCommand struct {
	R        *float64 `json:"r,omitempty" minimum:"0" maximum:"255" example:"255" doc:"Red 0-255"`
	G        *float64 `json:"g,omitempty" minimum:"0" maximum:"255" example:"0" doc:"Green 0-255"`
	B        *float64 `json:"b,omitempty" minimum:"0" maximum:"255" example:"0" doc:"Blue 0-255"`
	Pattern  string   `json:"pattern,omitempty" enum:"solid,blink,pulse,rainbow,off" example:"blink" doc:"Effect pattern, default solid"`
	Times    *float64 `json:"times,omitempty" minimum:"0" example:"3" doc:"Repeat count, 999 or more repeats until replaced"`
	Duration *float64 `json:"duration,omitempty" minimum:"0" example:"5" doc:"Solid hold in seconds, 0 holds until replaced"`
	Interval *float64 `json:"interval,omitempty" minimum:"0" example:"0.3" doc:"Step interval in seconds"`
}

// Message fills in defaults and returns the wire payload.
func (c LEDCommand) Message() nats.LightMessage {
	m := nats.DefaultLight()
	setIf(&m.R, c.R)
	setIf(&m.G, c.G)
	setIf(&m.B, c.B)
	setIf(&m.Times, c.Times)
	setIf(&m.Duration, c.Duration)
	setIf(&m.Interval, c.Interval)
	if c.Pattern != "" {
		m.Pattern = c.Pattern
	}
	return m
}

// LEDRequest wraps LEDCommand for huma.
type LEDRequest struct {
	Body LEDCommand
}

// ToneCommand is the body of POST /api/buzzer.
type ToneCommand struct {
	Frequency *float64 `json:"frequency,omitempty" exclusiveMinimum:"0" example:"2000" doc:"Tone frequency in Hz, default 1000"`
	Duration  *float64 `json:"duration,omitempty" minimum:"0" example:"200" doc:"Tone duration in milliseconds, default 500"`
}

// Message fills in defaults and returns the wire payload.
func (c ToneCommand) Message() nats.ToneMessage {
	m := nats.DefaultTone()
	setIf(&m.Frequency, c.Frequency)
	setIf(&m.Duration, c.Duration)
	return m
}

// ToneRequest wraps ToneCommand for huma.
type ToneRequest struct {
	Body ToneCommand
}

func setIf(dst, src *float64) {
	if src != nil {
		*dst = *src
	}
}

// PublishResult reports where a command was published.
type PublishResult struct {
	Subject string `json:"subject" example:"claude.led" doc:"Subject the command was published on"`
	Payload any    `json:"payload" doc:"Payload as published"`
}

// PublishResponse is returned by the command endpoints.
type PublishResponse struct {
	Body PublishResult
}

// Capabilities describes the light hardware.
type Capabilities struct {
	Driver      string    `json:"driver" example:"rpio" doc:"GPIO driver in use"`
	Patterns    []string  `json:"patterns" doc:"Accepted pattern names"`
	Pins        gpio.Pins `json:"pins" doc:"BCM pin numbers"`
	CommonAnode bool      `json:"common_anode" doc:"Whether the LED is wired active-low"`
	Tone        bool      `json:"tone" doc:"Whether the driver can produce tones in hardware"`
}

// CapabilitiesResponse is returned by GET /api/led/capabilities.
type CapabilitiesResponse struct {
	Body Capabilities
}

// HealthData reports daemon health.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"ok, or degraded while NATS is down"`
	Message string `json:"message" example:"API is healthy" doc:"Human readable status"`
	NATS    string `json:"nats" example:"connected" doc:"connected or disconnected"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Body HealthData
}

// VersionData describes the running build.
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"OS and architecture"`
}

// VersionResponse is returned by GET /api/version.
type VersionResponse struct {
	Body VersionData
}

// LogsRequest selects how many log entries to return.
type LogsRequest struct {
	Limit int `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Maximum entries, newest last"`
}

// LogsData holds recent log entries.
type LogsData struct {
	Entries []logging.Entry `json:"entries" doc:"Recent log entries, oldest first"`
	Total   int             `json:"total" doc:"Entries currently buffered"`
}

// LogsResponse is returned by GET /api/logs.
type LogsResponse struct {
	Body LogsData
}

// ServiceStatusRequest names the unit to inspect.
type ServiceStatusRequest struct {
	Unit string `query:"unit" example:"lightnode.service" doc:"Unit name, defaults to the daemon's own unit"`
}

// ServiceStatus is a systemd unit's state.
type ServiceStatus struct {
	Unit        string `json:"unit" example:"lightnode.service" doc:"Unit name"`
	LoadState   string `json:"load_state" example:"loaded" doc:"Load state"`
	ActiveState string `json:"active_state" example:"active" doc:"Active state"`
	SubState    string `json:"sub_state" example:"running" doc:"Sub state"`
}

// ServiceStatusResponse is returned by GET /api/service/status.
type ServiceStatusResponse struct {
	Body ServiceStatus
}
