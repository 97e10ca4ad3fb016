package buzzer

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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEmitter(t *testing.T, driver gpio.Driver, rec *gpiotest.Recorder, fatal func(error)) *Emitter {
	t.Helper()
	adapter, err := gpio.NewAdapter(driver, testPins, false)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	rec.Reset()
	e := New(adapter, nil, testLogger(), fatal)
	t.Cleanup(e.Close)
	return e
}

func assertSilent(t *testing.T, rec *gpiotest.Recorder) {
	t.Helper()
	w, ok := rec.Last(testPins.Buzzer)
	if !ok {
		t.Fatal("no buzzer writes")
	}
	if w.Kind != gpiotest.KindLevel || w.Value != 0 {
		t.Errorf("last buzzer write = %+v, want level low", w)
	}
}

func TestEmitter_ToneThenSilence(t *testing.T) {
	rec := gpiotest.NewRecorder()
	e := newTestEmitter(t, rec, rec, nil)

	start := time.Now()
	e.Beep(ToneRequest{Frequency: 2000, Duration: 50 * time.Millisecond})
	e.Wait()

	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("beep ended after %v, want at least 50ms", elapsed)
	}
	writes := rec.WritesFor(testPins.Buzzer)
	if len(writes) != 3 {
		t.Fatalf("writes = %+v, want tone, frequency 0, level low", writes)
	}
	if writes[0].Kind != gpiotest.KindFrequency || writes[0].Value != 2000 {
		t.Errorf("first write = %+v, want frequency 2000", writes[0])
	}
	assertSilent(t, rec)
}

func TestEmitter_Defaults(t *testing.T) {
	rec := gpiotest.NewRecorder()
	e := newTestEmitter(t, rec, rec, nil)

	e.Beep(ToneRequest{Frequency: -5, Duration: -time.Second})
	e.Wait()

	writes := rec.WritesFor(testPins.Buzzer)
	if len(writes) == 0 || writes[0].Value != DefaultFrequency {
		t.Errorf("writes = %+v, want a %v Hz tone first", writes, DefaultFrequency)
	}
	assertSilent(t, rec)
}

func TestEmitter_OverlappingBeepsEndSilenced(t *testing.T) {
	rec := gpiotest.NewRecorder()
	e := newTestEmitter(t, rec, rec, nil)

	e.Beep(ToneRequest{Frequency: 1000, Duration: 80 * time.Millisecond})
	time.Sleep(30 * time.Millisecond)
	e.Beep(ToneRequest{Frequency: 1500, Duration: 80 * time.Millisecond})
	e.Wait()

	assertSilent(t, rec)

	var tones []float64
	for _, w := range rec.WritesFor(testPins.Buzzer) {
		if w.Kind == gpiotest.KindFrequency && w.Value > 0 {
			tones = append(tones, w.Value)
		}
	}
	if len(tones) != 2 || tones[0] != 1000 || tones[1] != 1500 {
		t.Errorf("tones = %v, want [1000 1500]", tones)
	}
}

func TestEmitter_ToggleFallback(t *testing.T) {
	rec := gpiotest.NewRecorder()
	e := newTestEmitter(t, rec.WithoutTone(), rec, nil)

	e.Beep(ToneRequest{Frequency: 200, Duration: 60 * time.Millisecond})
	e.Wait()

	writes := rec.WritesFor(testPins.Buzzer)
	if len(writes) < 4 {
		t.Fatalf("only %d buzzer writes, want a toggled square wave", len(writes))
	}
	for _, w := range writes {
		if w.Kind != gpiotest.KindLevel {
			t.Fatalf("unexpected %s write without tone support", w.Kind)
		}
	}
	if writes[0].Value != 1 || writes[1].Value != 0 {
		t.Errorf("wave starts %v, %v; want high then low", writes[0].Value, writes[1].Value)
	}
	assertSilent(t, rec)
}

func TestEmitter_CloseInterrupts(t *testing.T) {
	rec := gpiotest.NewRecorder()
	e := newTestEmitter(t, rec, rec, nil)

	e.Beep(ToneRequest{Frequency: 1000, Duration: 10 * time.Second})
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not interrupt the beep")
	}
	assertSilent(t, rec)

	n := rec.Len()
	e.Beep(ToneRequest{Frequency: 1000, Duration: time.Millisecond})
	e.Wait()
	if rec.Len() != n {
		t.Error("Beep after Close wrote to the pin")
	}
}

func TestEmitter_WriteFailure(t *testing.T) {
	rec := gpiotest.NewRecorder()
	var mu sync.Mutex
	var got []error
	e := newTestEmitter(t, rec, rec, func(err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	})

	boom := errors.New("bus fault")
	rec.FailWrites(testPins.Buzzer, boom)
	e.Beep(ToneRequest{Frequency: 1000, Duration: time.Millisecond})
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 || !errors.Is(got[0], boom) {
		t.Errorf("fatal errors = %v, want %v", got, boom)
	}
}

func TestEmitter_PublishesToneEvent(t *testing.T) {
	bus := events.New()
	received := make(chan events.ToneEvent, 1)
	unsub := bus.Subscribe(func(ev events.ToneEvent) { received <- ev })
	defer unsub()

	rec := gpiotest.NewRecorder()
	adapter, err := gpio.NewAdapter(rec, testPins, false)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	e := New(adapter, bus, testLogger(), nil)
	defer e.Close()

	e.Beep(ToneRequest{Frequency: 440, Duration: time.Millisecond})

	select {
	case ev := <-received:
		if ev.Frequency != 440 || ev.Duration != "1ms" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no tone event")
	}
}
