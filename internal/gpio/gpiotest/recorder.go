// Package gpiotest provides an in-memory gpio.Driver that records writes.
package gpiotest

import (
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/lightnode/internal/gpio"
)

// Kind identifies the driver call that produced a Write.
type Kind string

const (
	KindDuty      Kind = "duty"
	KindLevel     Kind = "level"
	KindFrequency Kind = "frequency"
)

// Write is one recorded driver call. Level writes record 1 or 0 in Value.
type Write struct {
	Pin   int
	Kind  Kind
	Value float64
	At    time.Time
}

// Recorder implements gpio.ToneDriver and keeps every call in order.
type Recorder struct {
	mu         sync.Mutex
	modes      map[int]gpio.Mode
	idle       map[int]bool
	writes     []Write
	failPin    map[int]error
	claimError error
	closed     bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		modes:   make(map[int]gpio.Mode),
		idle:    make(map[int]bool),
		failPin: make(map[int]error),
	}
}

// FailWrites makes every later write to pin return err.
func (r *Recorder) FailWrites(pin int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failPin[pin] = err
}

// FailClaims makes Configure return err.
func (r *Recorder) FailClaims(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimError = err
}

func (r *Recorder) Configure(pin int, mode gpio.Mode, idleHigh bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimError != nil {
		return r.claimError
	}
	if _, ok := r.modes[pin]; ok {
		return fmt.Errorf("pin %d already claimed", pin)
	}
	r.modes[pin] = mode
	r.idle[pin] = idleHigh
	return nil
}

func (r *Recorder) SetDuty(pin int, ratio float64) error {
	return r.record(pin, KindDuty, ratio)
}

func (r *Recorder) SetLevel(pin int, high bool) error {
	v := 0.0
	if high {
		v = 1
	}
	return r.record(pin, KindLevel, v)
}

func (r *Recorder) SetFrequency(pin int, hz float64) error {
	return r.record(pin, KindFrequency, hz)
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *Recorder) record(pin int, kind Kind, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modes[pin]; !ok {
		return fmt.Errorf("pin %d not claimed", pin)
	}
	if err := r.failPin[pin]; err != nil {
		return err
	}
	r.writes = append(r.writes, Write{Pin: pin, Kind: kind, Value: value, At: time.Now()})
	return nil
}

// Mode returns the mode pin was claimed with.
func (r *Recorder) Mode(pin int) (gpio.Mode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modes[pin]
	return m, ok
}

// IdleHigh reports the level pin was parked at when it was claimed.
func (r *Recorder) IdleHigh(pin int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idle[pin]
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Writes returns a copy of every recorded write.
func (r *Recorder) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Write, len(r.writes))
	copy(out, r.writes)
	return out
}

// WritesFor returns the writes to pin, in order.
func (r *Recorder) WritesFor(pin int) []Write {
	var out []Write
	for _, w := range r.Writes() {
		if w.Pin == pin {
			out = append(out, w)
		}
	}
	return out
}

// Len returns the number of recorded writes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

// Reset forgets recorded writes but keeps pin claims.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = nil
}

// Last returns the most recent write to pin.
func (r *Recorder) Last(pin int) (Write, bool) {
	writes := r.WritesFor(pin)
	if len(writes) == 0 {
		return Write{}, false
	}
	return writes[len(writes)-1], true
}

// WithoutTone hides SetFrequency so the Recorder looks like a plain
// gpio.Driver.
func (r *Recorder) WithoutTone() gpio.Driver {
	return digitalOnly{r}
}

type digitalOnly struct {
	r *Recorder
}

func (d digitalOnly) Configure(pin int, mode gpio.Mode, idleHigh bool) error {
	return d.r.Configure(pin, mode, idleHigh)
}

func (d digitalOnly) SetDuty(pin int, ratio float64) error { return d.r.SetDuty(pin, ratio) }
func (d digitalOnly) SetLevel(pin int, high bool) error    { return d.r.SetLevel(pin, high) }
func (d digitalOnly) Close() error                         { return d.r.Close() }
