// Package buzzer plays tones on the piezo buzzer.
//
// Every Beep runs on its own goroutine and silences the pin when it ends,
// whether the duration elapsed or the emitter was closed. Overlapping beeps
// are not serialized; the last write to the pin wins.
package buzzer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/lightnode/internal/events"
)

// DefaultFrequency replaces a non-positive tone frequency.
const DefaultFrequency = 1000.0

// minHalfPeriod bounds the software toggle rate.
const minHalfPeriod = 100 * time.Microsecond

// Output is the buzzer side of the hardware. *gpio.Adapter implements it.
type Output interface {
	CanTone() bool
	Tone(hz float64) error
	SetBuzzer(high bool) error
	Silence() error
}

// ToneRequest is a single beep.
type ToneRequest struct {
	Frequency float64
	Duration  time.Duration
}

// Emitter plays ToneRequests.
type Emitter struct {
	out    Output
	bus    *events.Bus
	logger *slog.Logger
	fatal  func(error)

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates an emitter driving out. fatal receives hardware errors and
// may be nil.
func New(out Output, bus *events.Bus, logger *slog.Logger, fatal func(error)) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Emitter{
		out:    out,
		bus:    bus,
		logger: logger,
		fatal:  fatal,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Beep starts req in the background and returns immediately.
func (e *Emitter) Beep(req ToneRequest) {
	if req.Frequency <= 0 {
		req.Frequency = DefaultFrequency
	}
	if req.Duration < 0 {
		req.Duration = 0
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Debug("Emitter closed, ignoring tone", "frequency", req.Frequency)
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	e.logger.Debug("Starting tone", "frequency", req.Frequency, "duration", req.Duration)
	if e.bus != nil {
		e.bus.Publish(events.ToneEvent{
			Frequency: req.Frequency,
			Duration:  req.Duration.String(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	go e.play(req)
}

// Wait blocks until every in-flight beep has silenced the pin.
func (e *Emitter) Wait() {
	e.wg.Wait()
}

// Close cuts every in-flight beep short, waits for the pin to be silenced
// and ignores later Beep calls.
func (e *Emitter) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Emitter) play(req ToneRequest) {
	defer e.wg.Done()
	defer func() {
		if err := e.out.Silence(); err != nil {
			e.fail(err)
		}
	}()

	if e.out.CanTone() {
		if err := e.out.Tone(req.Frequency); err != nil {
			e.fail(err)
			return
		}
		wait(e.ctx, req.Duration)
		return
	}

	if err := e.toggle(req); err != nil {
		e.fail(err)
	}
}

// toggle bit-bangs a 50% square wave for drivers without tone support.
func (e *Emitter) toggle(req ToneRequest) error {
	half := time.Duration(float64(time.Second) / (2 * req.Frequency))
	if half < minHalfPeriod {
		half = minHalfPeriod
	}

	deadline := time.NewTimer(req.Duration)
	defer deadline.Stop()
	ticker := time.NewTicker(half)
	defer ticker.Stop()

	high := true
	if err := e.out.SetBuzzer(high); err != nil {
		return err
	}
	for {
		select {
		case <-e.ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-ticker.C:
			high = !high
			if err := e.out.SetBuzzer(high); err != nil {
				return err
			}
		}
	}
}

func (e *Emitter) fail(err error) {
	e.logger.Error("Buzzer write failed", "error", err)
	if e.fatal != nil {
		e.fatal(fmt.Errorf("buzzer: %w", err))
	}
}

// wait sleeps for d or until ctx is cancelled.
func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
