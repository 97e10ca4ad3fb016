package gpio

import (
	"fmt"
	"sync"
)

// Pins maps the indicator's channels to BCM GPIO numbers.
type Pins struct {
	Red    int `json:"red"`
	Green  int `json:"green"`
	Blue   int `json:"blue"`
	Buzzer int `json:"buzzer"`
}

// Adapter owns the RGB and buzzer pins and applies LED polarity.
// With activeLow (common-anode wiring) a brightness of 1 is electrically low.
// The buzzer is always active-high.
type Adapter struct {
	driver    Driver
	tone      ToneDriver
	pins      Pins
	activeLow bool

	mu  sync.Mutex
	lit bool
}

// NewAdapter claims all pins on driver and drives them off. LED pins are
// claimed parked at their electrical off level so they never flash on
// between the claim and the first write.
// A claim failure means the device is misconfigured and is returned as-is
// for the caller to treat as fatal.
func NewAdapter(driver Driver, pins Pins, activeLow bool) (*Adapter, error) {
	a := &Adapter{
		driver:    driver,
		pins:      pins,
		activeLow: activeLow,
	}
	if td, ok := driver.(ToneDriver); ok {
		a.tone = td
	}

	for _, pin := range []int{pins.Red, pins.Green, pins.Blue} {
		if err := driver.Configure(pin, ModePWM, activeLow); err != nil {
			return nil, fmt.Errorf("claim LED pin %d: %w", pin, err)
		}
	}

	buzzerMode := ModeDigital
	if a.tone != nil {
		buzzerMode = ModeTone
	}
	if err := driver.Configure(pins.Buzzer, buzzerMode, false); err != nil {
		return nil, fmt.Errorf("claim buzzer pin %d: %w", pins.Buzzer, err)
	}

	if err := a.AllOff(); err != nil {
		return nil, err
	}
	return a, nil
}

// Pins returns the pin assignment.
func (a *Adapter) Pins() Pins {
	return a.pins
}

// ActiveLow reports whether the LED is wired common-anode.
func (a *Adapter) ActiveLow() bool {
	return a.activeLow
}

// SetChannel sets an LED channel's brightness. ratio is clamped to [0, 1]
// and inverted under active-low polarity before reaching the driver.
func (a *Adapter) SetChannel(pin int, ratio float64) error {
	ratio = clamp(ratio)
	if a.activeLow {
		ratio = 1 - ratio
	}
	if err := a.driver.SetDuty(pin, ratio); err != nil {
		return fmt.Errorf("set duty on pin %d: %w", pin, err)
	}
	return nil
}

// SetLevel switches an LED channel fully on or off, honouring polarity.
func (a *Adapter) SetLevel(pin int, on bool) error {
	if err := a.driver.SetLevel(pin, on != a.activeLow); err != nil {
		return fmt.Errorf("set level on pin %d: %w", pin, err)
	}
	return nil
}

// SetRGB sets all three LED channels.
func (a *Adapter) SetRGB(r, g, b float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.SetChannel(a.pins.Red, r); err != nil {
		return err
	}
	if err := a.SetChannel(a.pins.Green, g); err != nil {
		return err
	}
	if err := a.SetChannel(a.pins.Blue, b); err != nil {
		return err
	}
	a.lit = r > 0 || g > 0 || b > 0
	return nil
}

// Lit reports whether the last RGB write left any channel above zero.
func (a *Adapter) Lit() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lit
}

// LightsOff drives the three LED channels to their electrical off state.
func (a *Adapter) LightsOff() error {
	return a.SetRGB(0, 0, 0)
}

// AllOff turns the LED off and silences the buzzer.
func (a *Adapter) AllOff() error {
	if err := a.LightsOff(); err != nil {
		return err
	}
	return a.Silence()
}

// CanTone reports whether the driver generates square waves itself.
func (a *Adapter) CanTone() bool {
	return a.tone != nil
}

// Tone starts a square wave at hz on the buzzer pin. Drivers without tone
// support return an error; callers toggle SetBuzzer instead.
func (a *Adapter) Tone(hz float64) error {
	if a.tone == nil {
		return fmt.Errorf("driver cannot generate tones on pin %d", a.pins.Buzzer)
	}
	if err := a.tone.SetFrequency(a.pins.Buzzer, hz); err != nil {
		return fmt.Errorf("set tone on pin %d: %w", a.pins.Buzzer, err)
	}
	return nil
}

// SetBuzzer drives the buzzer pin to a digital level.
func (a *Adapter) SetBuzzer(high bool) error {
	if err := a.driver.SetLevel(a.pins.Buzzer, high); err != nil {
		return fmt.Errorf("set buzzer level: %w", err)
	}
	return nil
}

// Silence stops any tone and drives the buzzer pin low.
func (a *Adapter) Silence() error {
	if a.tone != nil {
		if err := a.tone.SetFrequency(a.pins.Buzzer, 0); err != nil {
			return fmt.Errorf("silence buzzer: %w", err)
		}
	}
	return a.SetBuzzer(false)
}

// Close silences everything and releases the driver. The driver leaves the
// pins at the off levels written here.
func (a *Adapter) Close() error {
	offErr := a.AllOff()
	if err := a.driver.Close(); err != nil {
		return err
	}
	return offErr
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
