package gpio

import "log/slog"

// noop implements ToneDriver for systems without GPIO. Every write is logged.
type noop struct {
	logger *slog.Logger
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{logger: logger}
}

func (n *noop) Configure(pin int, mode Mode, idleHigh bool) error {
	n.logger.Debug("GPIO not available (no-op), claim", "pin", pin, "mode", mode.String(), "idle_high", idleHigh)
	return nil
}

func (n *noop) SetDuty(pin int, ratio float64) error {
	n.logger.Debug("GPIO not available (no-op), duty", "pin", pin, "ratio", ratio)
	return nil
}

func (n *noop) SetLevel(pin int, high bool) error {
	n.logger.Debug("GPIO not available (no-op), level", "pin", pin, "high", high)
	return nil
}

func (n *noop) SetFrequency(pin int, hz float64) error {
	n.logger.Debug("GPIO not available (no-op), tone", "pin", pin, "hz", hz)
	return nil
}

func (n *noop) Close() error {
	return nil
}
