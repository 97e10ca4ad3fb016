package led

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/gpio"
	"github.com/smazurov/lightnode/internal/gpio/gpiotest"
)

var testPins = gpio.Pins{Red: 17, Green: 27, Blue: 22, Buzzer: 18}

type fatalLog struct {
	mu   sync.Mutex
	errs []error
}

func (f *fatalLog) report(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
}

func (f *fatalLog) get() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

func newTestEngine(t *testing.T, bus *events.Bus) (*Engine, *gpiotest.Recorder, *fatalLog) {
	t.Helper()
	rec := gpiotest.NewRecorder()
	adapter, err := gpio.NewAdapter(rec, testPins, false)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	rec.Reset()

	fatal := &fatalLog{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	e := New(adapter, bus, logger, fatal.report)
	t.Cleanup(func() { _ = e.Close() })
	return e, rec, fatal
}

func waitIdle(t *testing.T, e *Engine, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for e.Active() {
		if time.Now().After(deadline) {
			t.Fatalf("engine still active after %v", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// rgbWrites groups the recorder log into SetRGB triples.
func rgbWrites(t *testing.T, writes []gpiotest.Write) []Color {
	t.Helper()
	if len(writes)%3 != 0 {
		t.Fatalf("write count %d is not a multiple of 3", len(writes))
	}
	var out []Color
	for i := 0; i < len(writes); i += 3 {
		r, g, b := writes[i], writes[i+1], writes[i+2]
		if r.Pin != testPins.Red || g.Pin != testPins.Green || b.Pin != testPins.Blue {
			t.Fatalf("unexpected pin order at %d: %d %d %d", i, r.Pin, g.Pin, b.Pin)
		}
		out = append(out, Color{R: r.Value, G: g.Value, B: b.Value})
	}
	return out
}

func TestEngine_SolidHoldsUntilStop(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)

	e.Start(EffectRequest{Color: Color{R: 1}, Pattern: PatternSolid})
	time.Sleep(80 * time.Millisecond)

	if !e.Active() {
		t.Fatal("solid with zero hold should stay active")
	}
	if got := rgbWrites(t, rec.Writes()); len(got) != 1 || got[0] != (Color{R: 1}) {
		t.Fatalf("writes = %v, want a single red write", got)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	got := rgbWrites(t, rec.Writes())
	if len(got) != 2 || got[1] != Off {
		t.Errorf("writes = %v, want red then off", got)
	}
	if e.Active() {
		t.Error("Active() = true after Stop")
	}
}

func TestEngine_SolidHoldExpires(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)

	start := time.Now()
	e.Start(EffectRequest{Color: Color{G: 1}, Pattern: PatternSolid, Hold: 60 * time.Millisecond})
	waitIdle(t, e, time.Second)

	got := rgbWrites(t, rec.Writes())
	if len(got) != 2 || got[0] != (Color{G: 1}) || got[1] != Off {
		t.Fatalf("writes = %v, want green then off", got)
	}
	offAt := rec.Writes()[3].At
	if held := offAt.Sub(start); held < 60*time.Millisecond {
		t.Errorf("turned off after %v, want at least 60ms", held)
	}
}

func TestEngine_SolidToSolidNoFlash(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)

	e.Start(EffectRequest{Color: Color{R: 1}, Pattern: PatternSolid})
	time.Sleep(20 * time.Millisecond)
	e.Start(EffectRequest{Color: Color{G: 1}, Pattern: PatternSolid})
	time.Sleep(20 * time.Millisecond)

	got := rgbWrites(t, rec.Writes())
	want := []Color{{R: 1}, {G: 1}}
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEngine_BlinkTransitions(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)
	interval := 30 * time.Millisecond

	e.Start(EffectRequest{Color: Color{R: 1, B: 1}, Pattern: PatternBlink, Times: 3, Interval: interval})
	waitIdle(t, e, 2*time.Second)

	red := rec.WritesFor(testPins.Red)
	want := []float64{1, 0, 1, 0, 1, 0}
	if len(red) != len(want) {
		t.Fatalf("red writes = %d, want %d", len(red), len(want))
	}
	for i, w := range red {
		if w.Value != want[i] {
			t.Errorf("red write %d = %v, want %v", i, w.Value, want[i])
		}
		if i > 0 {
			if gap := w.At.Sub(red[i-1].At); gap < interval-5*time.Millisecond {
				t.Errorf("gap before write %d = %v, want about %v", i, gap, interval)
			}
		}
	}
	if w, _ := rec.Last(testPins.Blue); w.Value != 0 {
		t.Error("blink left the LED on")
	}
}

func TestEngine_PatternNameCase(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		want    Pattern
	}{
		{"upper", "BLINK", PatternBlink},
		{"mixed", "Blink", PatternBlink},
		{"padded", " blink ", PatternBlink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rec, _ := newTestEngine(t, nil)

			e.Start(EffectRequest{Color: Color{R: 1}, Pattern: tt.pattern, Times: 2, Interval: 20 * time.Millisecond})
			run, ok := e.Current()
			if !ok {
				t.Fatal("no run started")
			}
			if run.Request.Pattern != tt.want {
				t.Errorf("run pattern = %q, want %q", run.Request.Pattern, tt.want)
			}
			waitIdle(t, e, 2*time.Second)

			red := rec.WritesFor(testPins.Red)
			want := []float64{1, 0, 1, 0}
			if len(red) != len(want) {
				t.Fatalf("red writes = %d, want %d blink steps", len(red), len(want))
			}
			for i, w := range red {
				if w.Value != want[i] {
					t.Errorf("red write %d = %v, want %v", i, w.Value, want[i])
				}
			}
		})
	}
}

func TestEngine_StartPreemptsBlink(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)

	e.Start(EffectRequest{Color: Color{R: 1}, Pattern: PatternBlink, Times: InfiniteRepeat, Interval: 15 * time.Millisecond})
	time.Sleep(50 * time.Millisecond)

	e.Start(EffectRequest{Color: Color{B: 1}, Pattern: PatternSolid})
	time.Sleep(60 * time.Millisecond)

	// The blue write must be the first and only write of the new run,
	// with nothing from the blink after it.
	got := rgbWrites(t, rec.Writes())
	blue := 0
	for _, c := range got {
		if c == (Color{B: 1}) {
			blue++
		}
	}
	if blue != 1 || got[len(got)-1] != (Color{B: 1}) {
		t.Errorf("writes = %v, want blink writes followed by a single blue write", got)
	}
}

func TestEngine_RainbowOrder(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)

	e.Start(EffectRequest{Pattern: PatternRainbow, Times: 1, Interval: 20 * time.Millisecond})
	waitIdle(t, e, 2*time.Second)

	got := rgbWrites(t, rec.Writes())
	want := append(append([]Color{}, rainbowSequence...), Off)
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEngine_PulseTriangle(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)

	e.Start(EffectRequest{Color: Color{R: 1}, Pattern: PatternPulse, Times: 1, Interval: 100 * time.Millisecond})
	waitIdle(t, e, 2*time.Second)

	red := rec.WritesFor(testPins.Red)
	if len(red) != 2*PulseSteps {
		t.Fatalf("red writes = %d, want %d", len(red), 2*PulseSteps)
	}
	for i := 1; i < len(red); i++ {
		rising := i < PulseSteps
		if rising && red[i].Value <= red[i-1].Value {
			t.Errorf("step %d not rising: %v -> %v", i, red[i-1].Value, red[i].Value)
		}
		if !rising && red[i].Value >= red[i-1].Value {
			t.Errorf("step %d not falling: %v -> %v", i, red[i-1].Value, red[i].Value)
		}
	}
	if peak := red[PulseSteps-1].Value; peak != 1 {
		t.Errorf("peak = %v, want 1", peak)
	}
	if last := red[len(red)-1].Value; last != 0 {
		t.Errorf("last = %v, want 0", last)
	}
}

func TestEngine_ZeroTimes(t *testing.T) {
	for _, p := range []Pattern{PatternBlink, PatternPulse, PatternRainbow} {
		t.Run(string(p), func(t *testing.T) {
			e, rec, _ := newTestEngine(t, nil)
			e.Start(EffectRequest{Color: Color{R: 1}, Pattern: p, Times: 0})
			waitIdle(t, e, time.Second)
			if n := rec.Len(); n != 0 {
				t.Errorf("writes = %d, want none", n)
			}
		})
	}
}

func TestEngine_ZeroTimesAfterSolidTurnsOff(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)

	e.Start(EffectRequest{Color: Color{R: 1}, Pattern: PatternSolid})
	time.Sleep(20 * time.Millisecond)
	e.Start(EffectRequest{Color: Color{G: 1}, Pattern: PatternBlink, Times: 0})
	waitIdle(t, e, time.Second)

	got := rgbWrites(t, rec.Writes())
	if len(got) != 2 || got[1] != Off {
		t.Errorf("writes = %v, want red then off", got)
	}
}

func TestEngine_UnknownPatternKeepsRun(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)

	e.Start(EffectRequest{Color: Color{R: 1}, Pattern: PatternSolid})
	time.Sleep(20 * time.Millisecond)
	before, _ := e.Current()

	e.Start(EffectRequest{Color: Color{G: 1}, Pattern: "strobe"})
	time.Sleep(20 * time.Millisecond)

	after, ok := e.Current()
	if !ok || after.ID != before.ID {
		t.Errorf("current run changed: %v -> %v", before.ID, after.ID)
	}
	if n := rec.Len(); n != 3 {
		t.Errorf("writes = %d, want 3", n)
	}
}

func TestEngine_StopIdempotent(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if n := rec.Len(); n != 0 {
		t.Errorf("Stop with nothing running wrote %d times", n)
	}

	e.Start(EffectRequest{Color: Color{R: 1}, Pattern: PatternSolid})
	time.Sleep(20 * time.Millisecond)
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	n := rec.Len()
	if err := e.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if rec.Len() != n {
		t.Errorf("second Stop wrote %d times", rec.Len()-n)
	}
}

func TestEngine_CloseIgnoresStart(t *testing.T) {
	e, rec, _ := newTestEngine(t, nil)

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w, _ := rec.Last(testPins.Buzzer); w.Kind != gpiotest.KindLevel || w.Value != 0 {
		t.Errorf("buzzer last write = %+v, want level low", w)
	}

	n := rec.Len()
	e.Start(EffectRequest{Color: Color{R: 1}, Pattern: PatternSolid})
	time.Sleep(20 * time.Millisecond)
	if e.Active() || rec.Len() != n {
		t.Error("Start after Close ran an effect")
	}
}

func TestEngine_WriteFailureIsFatal(t *testing.T) {
	bus := events.New()
	finished := make(chan events.EffectFinishedEvent, 1)
	unsub := bus.Subscribe(func(ev events.EffectFinishedEvent) { finished <- ev })
	defer unsub()

	e, rec, fatal := newTestEngine(t, bus)
	boom := errors.New("bus fault")
	rec.FailWrites(testPins.Green, boom)

	e.Start(EffectRequest{Color: Color{G: 1}, Pattern: PatternBlink, Times: 2, Interval: 10 * time.Millisecond})
	waitIdle(t, e, time.Second)

	select {
	case ev := <-finished:
		if ev.Outcome != events.OutcomeFailed {
			t.Errorf("outcome = %q, want %q", ev.Outcome, events.OutcomeFailed)
		}
	case <-time.After(time.Second):
		t.Fatal("no finished event")
	}

	deadline := time.Now().Add(time.Second)
	for len(fatal.get()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	errs := fatal.get()
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("fatal errors = %v, want one wrapping %v", errs, boom)
	}
}

func TestEngine_Events(t *testing.T) {
	bus := events.New()
	started := make(chan events.EffectStartedEvent, 4)
	finished := make(chan events.EffectFinishedEvent, 4)
	unsub1 := bus.Subscribe(func(ev events.EffectStartedEvent) { started <- ev })
	defer unsub1()
	unsub2 := bus.Subscribe(func(ev events.EffectFinishedEvent) { finished <- ev })
	defer unsub2()

	e, _, _ := newTestEngine(t, bus)

	e.Start(EffectRequest{Color: Color{R: 1}, Pattern: PatternSolid})
	e.Start(EffectRequest{Color: Color{B: 1}, Pattern: PatternBlink, Times: 1, Interval: 10 * time.Millisecond})
	waitIdle(t, e, time.Second)

	want := []string{events.OutcomeCancelled, events.OutcomeCompleted}
	for i, outcome := range want {
		select {
		case ev := <-finished:
			if ev.Outcome != outcome {
				t.Errorf("finished %d outcome = %q, want %q", i, ev.Outcome, outcome)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing finished event %d", i)
		}
	}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-started:
			if ev.RunID == "" {
				t.Error("started event without run ID")
			}
		case <-time.After(time.Second):
			t.Fatalf("missing started event %d", i)
		}
	}
}
