package systemd

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// listenNotify points NOTIFY_SOCKET at a fresh datagram socket.
func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	dir, err := os.MkdirTemp("", "sdnotify")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func readState(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	buf := make([]byte, 256)
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read notify socket: %v", err)
	}
	return string(buf[:n])
}

func TestWatchdogInterval(t *testing.T) {
	tests := []struct {
		name       string
		configured time.Duration
		timeout    time.Duration
		want       time.Duration
	}{
		{"default without watchdog", 0, 0, DefaultWatchdogInterval},
		{"configured without watchdog", 10 * time.Second, 0, 10 * time.Second},
		{"default under WatchdogSec=60", 0, 60 * time.Second, 25 * time.Second},
		{"capped at half timeout", 25 * time.Second, 30 * time.Second, 15 * time.Second},
		{"negative configured", -time.Second, 10 * time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WatchdogInterval(tt.configured, tt.timeout); got != tt.want {
				t.Errorf("WatchdogInterval(%v, %v) = %v, want %v", tt.configured, tt.timeout, got, tt.want)
			}
		})
	}
}

func TestNotifier_UsesWatchdogEnv(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "20000000")
	t.Setenv("WATCHDOG_PID", "")

	n := NewNotifier(25*time.Second, testLogger())
	if n.Interval() != 10*time.Second {
		t.Errorf("Interval() = %v, want 10s", n.Interval())
	}
}

func TestNotifier_NoSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	n := NewNotifier(time.Second, testLogger())

	if err := n.Ready(); err != nil {
		t.Errorf("Ready() error = %v", err)
	}
	if err := n.Stopping(); err != nil {
		t.Errorf("Stopping() error = %v", err)
	}
}

func TestNotifier_ReadyAndStopping(t *testing.T) {
	conn := listenNotify(t)
	n := NewNotifier(time.Second, testLogger())

	if err := n.Ready(); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}
	if got := readState(t, conn); got != "READY=1" {
		t.Errorf("state = %q, want READY=1", got)
	}

	if err := n.Status("lit %s", "red"); err != nil {
		t.Fatal(err)
	}
	if got := readState(t, conn); got != "STATUS=lit red" {
		t.Errorf("state = %q", got)
	}

	if err := n.Stopping(); err != nil {
		t.Fatal(err)
	}
	if got := readState(t, conn); got != "STOPPING=1" {
		t.Errorf("state = %q, want STOPPING=1", got)
	}
}

func TestNotifier_RunHeartbeat(t *testing.T) {
	conn := listenNotify(t)
	n := &Notifier{interval: 20 * time.Millisecond, logger: testLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	for i := 0; i < 3; i++ {
		if got := readState(t, conn); got != "WATCHDOG=1" {
			t.Fatalf("ping %d = %q, want WATCHDOG=1", i, got)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
