//go:build !linux

package gpio

import (
	"errors"
	"log/slog"
)

type cdevDriver struct {
	ToneDriver
}

func newCdev(_ string, _ int, _ *slog.Logger) (*cdevDriver, error) {
	return nil, errors.New("cdev driver is only available on linux")
}
