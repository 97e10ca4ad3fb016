// Package command turns inbound payloads into effects and tones.
package command

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/smazurov/lightnode/internal/buzzer"
	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/led"
	"github.com/smazurov/lightnode/internal/nats"
)

// Lights is the effect side of the dispatcher. *led.Engine implements it.
type Lights interface {
	Start(req led.EffectRequest)
	Stop() error
}

// Tones is the buzzer side of the dispatcher. *buzzer.Emitter implements it.
type Tones interface {
	Beep(req buzzer.ToneRequest)
}

// Dispatcher decodes payloads and hands them to the engine or emitter.
// Handle is called from a single receive loop and never blocks on an
// effect finishing.
type Dispatcher struct {
	lights   Lights
	tones    Tones
	subjects nats.Subjects
	bus      *events.Bus
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. bus may be nil.
func NewDispatcher(lights Lights, tones Tones, subjects nats.Subjects, bus *events.Bus, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		lights:   lights,
		tones:    tones,
		subjects: subjects,
		bus:      bus,
		logger:   logger,
	}
}

// Handle routes one message. Malformed payloads are dropped and only
// hardware failures are returned.
func (d *Dispatcher) Handle(subject string, data []byte) error {
	switch subject {
	case d.subjects.Light:
		msg, err := nats.UnmarshalLight(data)
		if err != nil {
			d.drop(subject, data, err)
			return nil
		}
		return d.light(msg)

	case d.subjects.Buzzer:
		msg, err := nats.UnmarshalTone(data)
		if err != nil {
			d.drop(subject, data, err)
			return nil
		}
		d.tones.Beep(ToneRequest(msg))
		return nil

	default:
		d.logger.Debug("Ignoring message on unknown subject", "subject", subject)
		return nil
	}
}

func (d *Dispatcher) light(msg nats.LightMessage) error {
	if strings.EqualFold(strings.TrimSpace(msg.Pattern), nats.PatternOff) {
		d.logger.Debug("Stopping effect on request")
		return d.lights.Stop()
	}

	req, ok := EffectRequest(msg)
	if !ok {
		d.logger.Debug("Ignoring unknown pattern", "pattern", msg.Pattern)
		return nil
	}
	d.lights.Start(req)
	return nil
}

func (d *Dispatcher) drop(subject string, data []byte, err error) {
	d.logger.Debug("Dropping malformed payload", "subject", subject, "size", len(data), "error", err)
	if d.bus != nil {
		d.bus.Publish(events.CommandDroppedEvent{
			Subject:   subject,
			Reason:    err.Error(),
			Size:      len(data),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// EffectRequest converts a light payload. It reports false for patterns the
// engine does not know.
func EffectRequest(msg nats.LightMessage) (led.EffectRequest, bool) {
	pattern, ok := led.ParsePattern(msg.Pattern)
	if !ok {
		return led.EffectRequest{}, false
	}
	return led.EffectRequest{
		Color:    led.ColorFromBytes(channel(msg.R), channel(msg.G), channel(msg.B)),
		Pattern:  pattern,
		Times:    repeatCount(msg.Times),
		Hold:     msg.HoldDuration(),
		Interval: msg.StepInterval(),
	}, true
}

// ToneRequest converts a tone payload.
func ToneRequest(msg nats.ToneMessage) buzzer.ToneRequest {
	return buzzer.ToneRequest{
		Frequency: msg.Frequency,
		Duration:  msg.ToneDuration(),
	}
}

func channel(v float64) int {
	return int(math.Round(math.Max(0, math.Min(255, v))))
}

func repeatCount(v float64) int {
	if v >= led.InfiniteRepeat {
		return led.InfiniteRepeat
	}
	if v <= 0 {
		return 0
	}
	return int(v)
}
