package nats

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// Default subjects. Both are configurable.
const (
	DefaultSubjectLight  = "claude.led"
	DefaultSubjectBuzzer = "claude.buzzer"
)

// DefaultEventsPrefix is where bus events are mirrored for observers.
const DefaultEventsPrefix = "lightnode.events"

// Subjects names the command subjects.
type Subjects struct {
	Light  string
	Buzzer string
}

// DefaultSubjects returns the stock command subjects.
func DefaultSubjects() Subjects {
	return Subjects{Light: DefaultSubjectLight, Buzzer: DefaultSubjectBuzzer}
}

// List returns the subjects to subscribe to.
func (s Subjects) List() []string {
	return []string{s.Light, s.Buzzer}
}

// PatternOff asks the daemon to stop the current effect.
const PatternOff = "off"

// LightMessage is the payload on the light subject. Numbers are decoded as
// floats so publishers may send 255 or 255.0 alike.
type LightMessage struct {
	R        float64 `json:"r" minimum:"0" maximum:"255" doc:"Red 0-255"`
	G        float64 `json:"g" minimum:"0" maximum:"255" doc:"Green 0-255"`
	B        float64 `json:"b" minimum:"0" maximum:"255" doc:"Blue 0-255"`
	Pattern  string  `json:"pattern" enum:"solid,blink,pulse,rainbow,off" doc:"Effect pattern"`
	Times    float64 `json:"times" doc:"Repeat count, 999 or more repeats until replaced"`
	Duration float64 `json:"duration" doc:"Solid hold in seconds, 0 holds until replaced"`
	Interval float64 `json:"interval" doc:"Step interval in seconds"`
}

// DefaultLight returns the values used for fields a payload leaves out.
func DefaultLight() LightMessage {
	return LightMessage{
		Pattern:  "solid",
		Times:    1,
		Duration: 5,
		Interval: 0.3,
	}
}

// HoldDuration converts Duration to a time.Duration.
func (m LightMessage) HoldDuration() time.Duration {
	return seconds(m.Duration)
}

// StepInterval converts Interval to a time.Duration.
func (m LightMessage) StepInterval() time.Duration {
	return seconds(m.Interval)
}

// Marshal serializes the message to JSON.
func (m LightMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ToneMessage is the payload on the buzzer subject.
type ToneMessage struct {
	Frequency float64 `json:"frequency" doc:"Tone frequency in Hz"`
	Duration  float64 `json:"duration" doc:"Tone duration in milliseconds"`
}

// DefaultTone returns the values used for fields a payload leaves out.
func DefaultTone() ToneMessage {
	return ToneMessage{Frequency: 1000, Duration: 500}
}

// ToneDuration converts Duration to a time.Duration.
func (m ToneMessage) ToneDuration() time.Duration {
	return toDuration(m.Duration, time.Millisecond)
}

// Marshal serializes the message to JSON.
func (m ToneMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

var errNotObject = errors.New("payload is not a JSON object")

// UnmarshalLight decodes a light payload, filling absent fields with
// DefaultLight values.
func UnmarshalLight(data []byte) (LightMessage, error) {
	m := DefaultLight()
	if err := unmarshalObject(data, &m); err != nil {
		return LightMessage{}, err
	}
	return m, nil
}

// UnmarshalTone decodes a tone payload, filling absent fields with
// DefaultTone values.
func UnmarshalTone(data []byte) (ToneMessage, error) {
	m := DefaultTone()
	if err := unmarshalObject(data, &m); err != nil {
		return ToneMessage{}, err
	}
	return m, nil
}

// unmarshalObject rejects anything but a JSON object, including null,
// which json.Unmarshal would accept silently.
func unmarshalObject(data []byte, v any) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errNotObject
	}
	return json.Unmarshal(data, v)
}

func seconds(s float64) time.Duration {
	return toDuration(s, time.Second)
}

// toDuration converts v units to a Duration, saturating values that do not
// fit in an int64 instead of letting them wrap.
func toDuration(v float64, unit time.Duration) time.Duration {
	d := v * float64(unit)
	switch {
	case math.IsNaN(d):
		return 0
	case d >= math.MaxInt64:
		return math.MaxInt64
	case d <= math.MinInt64:
		return math.MinInt64
	}
	return time.Duration(d)
}
