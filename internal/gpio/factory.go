package gpio

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Driver names accepted by New.
const (
	DriverAuto = "auto"
	DriverRPIO = "rpio"
	DriverCdev = "cdev"
	DriverNoop = "noop"
)

// DefaultChip is the character device the cdev driver opens when no chip is
// configured. On current Raspberry Pi kernels it is the header GPIO bank on
// every model.
const DefaultChip = "gpiochip0"

// New returns the driver called name. "auto" reads the board model and
// picks cdev on a Raspberry Pi 5, rpio on older Raspberry Pis and the no-op
// driver everywhere else. chip only matters to the cdev driver.
func New(name, chip string, pwmFrequency int, logger *slog.Logger) (Driver, string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(name) {
	case "", DriverAuto:
		boardModel := detectBoard()
		picked := driverForBoard(boardModel)
		switch picked {
		case DriverNoop:
			logger.Info("No GPIO support detected, using no-op driver", "board_model", boardModel)
		default:
			logger.Info("Detected Raspberry Pi", "board_model", boardModel, "driver", picked)
		}
		return open(picked, chip, pwmFrequency, logger)

	case DriverRPIO:
		if err := rpioSupported(detectBoard()); err != nil {
			return nil, "", err
		}
		return open(DriverRPIO, chip, pwmFrequency, logger)

	case DriverCdev, DriverNoop:
		return open(strings.ToLower(name), chip, pwmFrequency, logger)

	default:
		return nil, "", fmt.Errorf("unknown GPIO driver %q", name)
	}
}

func open(name, chip string, pwmFrequency int, logger *slog.Logger) (Driver, string, error) {
	switch name {
	case DriverRPIO:
		d, err := newRPIO(pwmFrequency, logger)
		if err != nil {
			return nil, "", err
		}
		return d, DriverRPIO, nil
	case DriverCdev:
		d, err := newCdev(chip, pwmFrequency, logger)
		if err != nil {
			return nil, "", err
		}
		return d, DriverCdev, nil
	default:
		return newNoop(logger), DriverNoop, nil
	}
}

// driverForBoard maps a device tree model string to the driver "auto" uses.
func driverForBoard(model string) string {
	switch {
	case hasRP1(model):
		return DriverCdev
	case strings.Contains(model, "Raspberry Pi"):
		return DriverRPIO
	default:
		return DriverNoop
	}
}

// hasRP1 reports whether the board routes its header GPIO through the RP1
// south bridge. go-rpio maps BCM283x registers and cannot drive RP1 pins.
func hasRP1(model string) bool {
	return strings.Contains(model, "Raspberry Pi 5") ||
		strings.Contains(model, "Compute Module 5")
}

// rpioSupported rejects an explicit rpio choice on boards it cannot drive,
// instead of letting writes land in the wrong registers.
func rpioSupported(model string) error {
	if hasRP1(model) {
		return fmt.Errorf("rpio driver cannot drive GPIO on %q, use the %s driver", model, DriverCdev)
	}
	return nil
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
