package led

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/lightnode/internal/events"
)

// Output is the hardware the engine drives. *gpio.Adapter implements it.
type Output interface {
	SetRGB(r, g, b float64) error
	LightsOff() error
	AllOff() error
	Lit() bool
}

// errSuperseded is returned by write when a newer run owns the pins.
var errSuperseded = errors.New("run superseded")

// Run is the effect an engine is executing.
type Run struct {
	ID      string        `json:"id"`
	Request EffectRequest `json:"request"`
	Started time.Time     `json:"started"`
}

// Engine executes one effect at a time.
type Engine struct {
	out    Output
	bus    *events.Bus
	logger *slog.Logger
	fatal  func(error)

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	current *Run
	closed  bool

	// writeMu serializes pin writes; live is the only generation allowed
	// to write.
	writeMu sync.Mutex
	live    uint64
}

// New creates an engine driving out. fatal receives hardware write errors
// from runs and may be nil. bus may be nil.
func New(out Output, bus *events.Bus, logger *slog.Logger, fatal func(error)) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		out:    out,
		bus:    bus,
		logger: logger,
		fatal:  fatal,
	}
}

// Start supersedes the current run with req. It returns once the previous
// run has exited and the new one is launched. Pattern names are matched
// case-insensitively. Unknown patterns are ignored and leave the current run
// alone.
func (e *Engine) Start(req EffectRequest) {
	pattern, ok := ParsePattern(string(req.Pattern))
	if !ok {
		e.logger.Debug("Ignoring unknown pattern", "pattern", req.Pattern)
		return
	}
	req.Pattern = pattern

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		e.logger.Debug("Engine closed, ignoring effect", "pattern", req.Pattern)
		return
	}

	e.supersede()
	gen := e.advance()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	run := &Run{ID: uuid.NewString(), Request: req, Started: time.Now()}
	e.cancel, e.done, e.current = cancel, done, run

	e.logger.Debug("Starting effect",
		"run_id", run.ID,
		"pattern", req.Pattern,
		"color", req.Color,
		"times", req.Times,
		"hold", req.Hold,
		"interval", req.StepInterval())
	e.publish(events.EffectStartedEvent{
		RunID:     run.ID,
		Pattern:   string(req.Pattern),
		Red:       req.Color.R,
		Green:     req.Color.G,
		Blue:      req.Color.B,
		Times:     req.Times,
		Timestamp: run.Started.Format(time.RFC3339),
	})

	go e.run(ctx, gen, run, done)
}

// Stop cancels the current run and turns the LED off. With nothing running
// and the LED already dark it writes nothing.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.supersede()
	gen := e.advance()
	return e.write(gen, func() error {
		if !e.out.Lit() {
			return nil
		}
		return e.out.LightsOff()
	})
}

// Close stops the engine for good and silences every pin. Later Start
// calls are ignored.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.supersede()
	gen := e.advance()
	return e.write(gen, e.out.AllOff)
}

// Current returns the run in progress, if any.
func (e *Engine) Current() (Run, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return Run{}, false
	}
	select {
	case <-e.done:
		return Run{}, false
	default:
		return *e.current, true
	}
}

// Active reports whether a run is in progress.
func (e *Engine) Active() bool {
	_, ok := e.Current()
	return ok
}

// supersede cancels the active run and waits until it has exited.
// Caller holds e.mu.
func (e *Engine) supersede() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel, e.done, e.current = nil, nil, nil
}

// advance moves write ownership to a fresh generation. Caller holds e.mu.
func (e *Engine) advance() uint64 {
	e.gen++
	e.writeMu.Lock()
	e.live = e.gen
	e.writeMu.Unlock()
	return e.gen
}

// write runs fn only if gen still owns the pins.
func (e *Engine) write(gen uint64, fn func() error) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if gen != e.live {
		return errSuperseded
	}
	return fn()
}

func (e *Engine) run(ctx context.Context, gen uint64, run *Run, done chan struct{}) {
	err := e.play(ctx, gen, run.Request)
	if err == nil {
		err = e.write(gen, func() error {
			if !e.out.Lit() {
				return nil
			}
			return e.out.LightsOff()
		})
	}

	outcome := events.OutcomeCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, errSuperseded):
		outcome = events.OutcomeCancelled
		err = nil
	default:
		outcome = events.OutcomeFailed
	}

	elapsed := time.Since(run.Started)
	finished := events.EffectFinishedEvent{
		RunID:     run.ID,
		Pattern:   string(run.Request.Pattern),
		Outcome:   outcome,
		Elapsed:   elapsed.String(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		finished.Error = err.Error()
		e.logger.Error("Effect failed", "run_id", run.ID, "pattern", run.Request.Pattern, "error", err)
	} else {
		e.logger.Debug("Effect finished", "run_id", run.ID, "outcome", outcome, "elapsed", elapsed)
	}
	e.publish(finished)
	close(done)

	if err != nil && e.fatal != nil {
		e.fatal(fmt.Errorf("effect %s: %w", run.Request.Pattern, err))
	}
}

// play renders req until it completes or ctx is cancelled.
func (e *Engine) play(ctx context.Context, gen uint64, req EffectRequest) error {
	set := func(c Color) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return e.write(gen, func() error {
			return e.out.SetRGB(c.R, c.G, c.B)
		})
	}
	interval := req.StepInterval()

	switch req.Pattern {
	case PatternSolid:
		if err := set(req.Color); err != nil {
			return err
		}
		if req.Hold <= 0 {
			<-ctx.Done()
			return ctx.Err()
		}
		return sleep(ctx, req.Hold)

	case PatternBlink:
		return req.repeats(func() error {
			if err := set(req.Color); err != nil {
				return err
			}
			if err := sleep(ctx, interval); err != nil {
				return err
			}
			if err := set(Off); err != nil {
				return err
			}
			return sleep(ctx, interval)
		})

	case PatternPulse:
		step := interval / (2 * PulseSteps)
		return req.repeats(func() error {
			for i := 1; i <= 2*PulseSteps; i++ {
				if err := set(req.Color.Scale(pulseLevel(i))); err != nil {
					return err
				}
				if err := sleep(ctx, step); err != nil {
					return err
				}
			}
			return nil
		})

	case PatternRainbow:
		return req.repeats(func() error {
			for _, c := range rainbowSequence {
				if err := set(c); err != nil {
					return err
				}
				if err := sleep(ctx, interval); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return nil
}

// pulseLevel is the brightness of step i of a 2*PulseSteps triangle.
func pulseLevel(i int) float64 {
	if i <= PulseSteps {
		return float64(i) / PulseSteps
	}
	return float64(2*PulseSteps-i) / PulseSteps
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
