// Package systemd talks to the service manager: sd_notify liveness from the
// daemon, and unit control over D-Bus for the service subcommand.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// DefaultWatchdogInterval matches a unit with WatchdogSec=60.
const DefaultWatchdogInterval = 25 * time.Second

// Notifier sends sd_notify messages. Outside systemd (no NOTIFY_SOCKET)
// every call is a no-op.
type Notifier struct {
	interval time.Duration
	logger   *slog.Logger
}

// NewNotifier creates a notifier pinging every configured interval, or
// more often if systemd's WatchdogSec demands it.
func NewNotifier(configured time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	timeout, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("Ignoring invalid watchdog environment", "error", err)
		timeout = 0
	}
	return &Notifier{
		interval: WatchdogInterval(configured, timeout),
		logger:   logger,
	}
}

// WatchdogInterval picks the heartbeat cadence: configured (or the default)
// but never more than half of a non-zero watchdog timeout.
func WatchdogInterval(configured, timeout time.Duration) time.Duration {
	if configured <= 0 {
		configured = DefaultWatchdogInterval
	}
	if timeout > 0 && configured > timeout/2 {
		return timeout / 2
	}
	return configured
}

// Interval returns the heartbeat cadence.
func (n *Notifier) Interval() time.Duration {
	return n.interval
}

// Ready tells systemd startup finished.
func (n *Notifier) Ready() error {
	return n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd shutdown has begun.
func (n *Notifier) Stopping() error {
	return n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) error {
	return n.send("STATUS=" + fmt.Sprintf(format, args...))
}

// Run pings the watchdog until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.Debug("Watchdog heartbeat started", "interval", n.interval)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		if err := n.send(daemon.SdNotifyWatchdog); err != nil {
			n.logger.Warn("Watchdog ping failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (n *Notifier) send(state string) error {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return fmt.Errorf("sd_notify %s: %w", state, err)
	}
	if sent {
		n.logger.Debug("Notified systemd", "state", state)
	}
	return nil
}
