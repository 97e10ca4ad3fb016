package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/smazurov/lightnode/internal/gpio"
	"github.com/smazurov/lightnode/internal/gpio/gpiotest"
	"github.com/smazurov/lightnode/internal/nats"
)

var testPins = gpio.Pins{Red: 17, Green: 27, Blue: 22, Buzzer: 18}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type running struct {
	cancel context.CancelFunc
	done   chan error
	url    string
}

func (r *running) stop(t *testing.T) error {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
		return nil
	}
}

func startDaemon(t *testing.T, port int, rec *gpiotest.Recorder) *running {
	t.Helper()
	d := New(Config{
		NATSEmbedded:     true,
		NATSHost:         "127.0.0.1",
		NATSPort:         port,
		Pins:             testPins,
		Driver:           rec,
		WatchdogInterval: time.Second,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{cancel: cancel, done: make(chan error, 1), url: fmt.Sprintf("nats://127.0.0.1:%d", port)}
	go func() { r.done <- d.Run(ctx) }()

	select {
	case <-d.Ready():
	case err := <-r.done:
		cancel()
		t.Fatalf("daemon exited before ready: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("daemon not ready")
	}
	return r
}

func publisher(t *testing.T, url string) *nats.Publisher {
	t.Helper()
	pub, err := nats.NewPublisher(url, "daemon-test", nats.DefaultSubjects(), testLogger())
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	t.Cleanup(pub.Close)
	return pub
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func lastValue(rec *gpiotest.Recorder, pin int) float64 {
	w, ok := rec.Last(pin)
	if !ok {
		return -1
	}
	return w.Value
}

func TestDaemonAppliesCommandsAndReleasesPins(t *testing.T) {
	rec := gpiotest.NewRecorder()
	r := startDaemon(t, 14231, rec)
	pub := publisher(t, r.url)

	msg := nats.DefaultLight()
	msg.R, msg.B = 255, 255
	msg.Duration = 0
	if err := pub.PublishLight(context.Background(), msg); err != nil {
		t.Fatalf("PublishLight: %v", err)
	}

	waitFor(t, "magenta", func() bool {
		return lastValue(rec, testPins.Red) == 1 && lastValue(rec, testPins.Blue) == 1
	})

	if err := r.stop(t); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if !rec.Closed() {
		t.Error("driver not closed on shutdown")
	}
	for _, pin := range []int{testPins.Red, testPins.Green, testPins.Blue} {
		if v := lastValue(rec, pin); v != 0 {
			t.Errorf("pin %d left at %v after shutdown", pin, v)
		}
	}
}

func TestDaemonOffCommand(t *testing.T) {
	rec := gpiotest.NewRecorder()
	r := startDaemon(t, 14232, rec)
	defer r.stop(t)
	pub := publisher(t, r.url)

	on := nats.DefaultLight()
	on.G = 255
	on.Duration = 0
	if err := pub.PublishLight(context.Background(), on); err != nil {
		t.Fatalf("PublishLight: %v", err)
	}
	waitFor(t, "green", func() bool { return lastValue(rec, testPins.Green) == 1 })

	off := nats.DefaultLight()
	off.Pattern = nats.PatternOff
	if err := pub.PublishLight(context.Background(), off); err != nil {
		t.Fatalf("PublishLight: %v", err)
	}
	waitFor(t, "off", func() bool { return lastValue(rec, testPins.Green) == 0 })
}

func TestDaemonHardwareFailureIsFatal(t *testing.T) {
	rec := gpiotest.NewRecorder()
	r := startDaemon(t, 14233, rec)
	pub := publisher(t, r.url)

	boom := errors.New("pin stuck")
	rec.FailWrites(testPins.Red, boom)

	msg := nats.DefaultLight()
	msg.R = 255
	if err := pub.PublishLight(context.Background(), msg); err != nil {
		t.Fatalf("PublishLight: %v", err)
	}

	select {
	case err := <-r.done:
		if !errors.Is(err, boom) {
			t.Errorf("Run returned %v, want wrapped %v", err, boom)
		}
	case <-time.After(5 * time.Second):
		r.cancel()
		t.Fatal("daemon kept running after a hardware failure")
	}
}

func TestDaemonClaimFailureAborts(t *testing.T) {
	rec := gpiotest.NewRecorder()
	boom := errors.New("pin busy")
	rec.FailClaims(boom)

	d := New(Config{Pins: testPins, Driver: rec, NATSURL: "nats://127.0.0.1:1"}, testLogger())
	err := d.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run returned %v, want wrapped %v", err, boom)
	}
	select {
	case <-d.Ready():
		t.Error("daemon reported ready after a claim failure")
	default:
	}
}
