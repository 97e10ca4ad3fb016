//go:build !linux

package gpio

import (
	"errors"
	"log/slog"
)

type rpioDriver struct {
	ToneDriver
}

func newRPIO(_ int, _ *slog.Logger) (*rpioDriver, error) {
	return nil, errors.New("rpio driver is only available on linux")
}
