//go:build linux

package gpio

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

const (
	// pwmCycle is the number of clock ticks per PWM period for LED channels.
	pwmCycle = 100
	// toneCycle is the number of clock ticks per period for buzzer tones.
	toneCycle = 32
	// minPWMClock is the lowest clock go-rpio can program for PWM pins.
	minPWMClock = 4688
)

// hardwarePWMPins are the BCM pins routed to the SoC PWM block.
var hardwarePWMPins = map[int]bool{12: true, 13: true, 18: true, 19: true}

type rpioPin struct {
	pin      rpio.Pin
	mode     Mode
	hardware bool
	soft     *softPWM
}

// rpioDriver drives pins through /dev/gpiomem using go-rpio.
type rpioDriver struct {
	mu           sync.Mutex
	pins         map[int]*rpioPin
	pwmFrequency int
	logger       *slog.Logger
}

func newRPIO(pwmFrequency int, logger *slog.Logger) (*rpioDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO memory: %w", err)
	}
	if pwmFrequency <= 0 {
		pwmFrequency = 100
	}
	return &rpioDriver{
		pins:         make(map[int]*rpioPin),
		pwmFrequency: pwmFrequency,
		logger:       logger,
	}, nil
}

func (d *rpioDriver) Configure(pin int, mode Mode, idleHigh bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, claimed := d.pins[pin]; claimed {
		return fmt.Errorf("pin %d already claimed", pin)
	}

	// Levels are latched before the pin turns into an output so it never
	// glitches through the wrong state.
	p := &rpioPin{pin: rpio.Pin(pin), mode: mode}
	switch {
	case mode == ModeDigital:
		d.writeLevel(p, idleHigh)
		p.pin.Output()
	case hardwarePWMPins[pin]:
		p.hardware = true
		p.pin.Freq(d.pwmFrequency * pwmCycle)
		p.pin.DutyCycle(levelDuty(idleHigh), pwmCycle)
		p.pin.Pwm()
	default:
		d.writeLevel(p, idleHigh)
		p.pin.Output()
		p.soft = newSoftPWM(func(high bool) { d.writeLevel(p, high) }, idleHigh)
	}

	d.pins[pin] = p
	d.logger.Debug("Claimed GPIO pin", "pin", pin, "mode", mode.String(), "hardware_pwm", p.hardware, "idle_high", idleHigh)
	return nil
}

func (d *rpioDriver) lookup(pin int) (*rpioPin, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pins[pin]
	if !ok {
		return nil, fmt.Errorf("pin %d not claimed", pin)
	}
	return p, nil
}

func (d *rpioDriver) SetDuty(pin int, ratio float64) error {
	p, err := d.lookup(pin)
	if err != nil {
		return err
	}

	switch {
	case p.hardware:
		p.pin.Freq(d.pwmFrequency * pwmCycle)
		p.pin.DutyCycle(uint32(math.Round(clamp(ratio)*pwmCycle)), pwmCycle)
	case p.soft != nil:
		p.soft.Set(time.Second/time.Duration(d.pwmFrequency), ratio)
	default:
		d.writeLevel(p, ratio >= 0.5)
	}
	return nil
}

func (d *rpioDriver) SetLevel(pin int, high bool) error {
	p, err := d.lookup(pin)
	if err != nil {
		return err
	}

	switch {
	case p.hardware:
		p.pin.DutyCycle(levelDuty(high), pwmCycle)
	case p.soft != nil:
		ratio := 0.0
		if high {
			ratio = 1
		}
		p.soft.Set(time.Second/time.Duration(d.pwmFrequency), ratio)
	default:
		d.writeLevel(p, high)
	}
	return nil
}

func (d *rpioDriver) SetFrequency(pin int, hz float64) error {
	p, err := d.lookup(pin)
	if err != nil {
		return err
	}

	if hz <= 0 {
		if p.hardware {
			p.pin.DutyCycle(0, toneCycle)
		} else if p.soft != nil {
			p.soft.Set(0, 0)
		} else {
			d.writeLevel(p, false)
		}
		return nil
	}

	switch {
	case p.hardware:
		cycle := uint32(toneCycle)
		for float64(cycle)*hz < minPWMClock {
			cycle *= 2
		}
		p.pin.Freq(int(math.Round(hz * float64(cycle))))
		p.pin.DutyCycle(cycle/2, cycle)
	case p.soft != nil:
		p.soft.Set(time.Duration(float64(time.Second)/hz), 0.5)
	default:
		return fmt.Errorf("pin %d claimed as %s cannot play tones", pin, p.mode)
	}
	return nil
}

func (d *rpioDriver) writeLevel(p *rpioPin, high bool) {
	if high {
		p.pin.High()
	} else {
		p.pin.Low()
	}
}

// Close stops software PWM and unmaps GPIO memory. Pins keep the level the
// last write left them at.
func (d *rpioDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for num, p := range d.pins {
		if p.soft != nil {
			p.soft.Close()
		}
		delete(d.pins, num)
	}

	if err := rpio.Close(); err != nil {
		return fmt.Errorf("failed to close GPIO memory: %w", err)
	}
	return nil
}

// levelDuty is the hardware duty that holds a pin at a steady level.
func levelDuty(high bool) uint32 {
	if high {
		return pwmCycle
	}
	return 0
}
