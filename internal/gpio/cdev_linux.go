//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const cdevConsumer = "lightnode"

type cdevPin struct {
	line *gpiocdev.Line
	mode Mode
	soft *softPWM

	mu      sync.Mutex
	lastErr error
}

func (p *cdevPin) write(high bool) {
	v := 0
	if high {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
	}
}

// takeErr returns and clears the last error seen by the PWM goroutine.
func (p *cdevPin) takeErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.lastErr
	p.lastErr = nil
	return err
}

// cdevDriver drives pins through the GPIO character device. It works on
// boards whose GPIO block is not memory mapped the BCM283x way, such as the
// Raspberry Pi 5. Every waveform is software generated.
type cdevDriver struct {
	mu           sync.Mutex
	chip         *gpiocdev.Chip
	pins         map[int]*cdevPin
	pwmFrequency int
	logger       *slog.Logger
}

func newCdev(chip string, pwmFrequency int, logger *slog.Logger) (*cdevDriver, error) {
	if chip == "" {
		chip = DefaultChip
	}
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(cdevConsumer))
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chip, err)
	}
	if pwmFrequency <= 0 {
		pwmFrequency = 100
	}
	logger.Debug("Opened GPIO chip", "chip", chip, "lines", c.Lines())
	return &cdevDriver{
		chip:         c,
		pins:         make(map[int]*cdevPin),
		pwmFrequency: pwmFrequency,
		logger:       logger,
	}, nil
}

func (d *cdevDriver) Configure(pin int, mode Mode, idleHigh bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, claimed := d.pins[pin]; claimed {
		return fmt.Errorf("pin %d already claimed", pin)
	}

	initial := 0
	if idleHigh {
		initial = 1
	}
	line, err := d.chip.RequestLine(pin, gpiocdev.AsOutput(initial))
	if err != nil {
		return fmt.Errorf("request line %d: %w", pin, err)
	}

	p := &cdevPin{line: line, mode: mode}
	if mode != ModeDigital {
		p.soft = newSoftPWM(p.write, idleHigh)
	}

	d.pins[pin] = p
	d.logger.Debug("Claimed GPIO line", "pin", pin, "mode", mode.String(), "idle_high", idleHigh)
	return nil
}

func (d *cdevDriver) lookup(pin int) (*cdevPin, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pins[pin]
	if !ok {
		return nil, fmt.Errorf("pin %d not claimed", pin)
	}
	return p, nil
}

func (d *cdevDriver) period() time.Duration {
	return time.Second / time.Duration(d.pwmFrequency)
}

func (d *cdevDriver) SetDuty(pin int, ratio float64) error {
	p, err := d.lookup(pin)
	if err != nil {
		return err
	}
	if p.soft == nil {
		return d.setValue(p, ratio >= 0.5)
	}
	p.soft.Set(d.period(), ratio)
	return p.takeErr()
}

func (d *cdevDriver) SetLevel(pin int, high bool) error {
	p, err := d.lookup(pin)
	if err != nil {
		return err
	}
	if p.soft == nil {
		return d.setValue(p, high)
	}
	ratio := 0.0
	if high {
		ratio = 1
	}
	p.soft.Set(d.period(), ratio)
	return p.takeErr()
}

func (d *cdevDriver) SetFrequency(pin int, hz float64) error {
	p, err := d.lookup(pin)
	if err != nil {
		return err
	}
	if p.soft == nil {
		if hz <= 0 {
			return d.setValue(p, false)
		}
		return fmt.Errorf("pin %d claimed as %s cannot play tones", pin, p.mode)
	}
	if hz <= 0 {
		p.soft.Set(0, 0)
	} else {
		p.soft.Set(time.Duration(float64(time.Second)/hz), 0.5)
	}
	return p.takeErr()
}

func (d *cdevDriver) setValue(p *cdevPin, high bool) error {
	p.write(high)
	if err := p.takeErr(); err != nil {
		return fmt.Errorf("set line %d: %w", p.line.Offset(), err)
	}
	return nil
}

// Close stops software PWM and releases the lines and the chip. The kernel
// keeps a released output at its last value on the Raspberry Pi GPIO
// drivers.
func (d *cdevDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for num, p := range d.pins {
		if p.soft != nil {
			p.soft.Close()
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release line %d: %w", num, err))
		}
		delete(d.pins, num)
	}
	if err := d.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close GPIO chip: %w", err))
	}
	return errors.Join(errs...)
}
