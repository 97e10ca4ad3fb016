// Package gpio exposes the GPIO pins lightnode owns.
//
// A Driver is the raw hardware capability (claim a pin, set a duty ratio,
// set a level). The Adapter sits on top of a Driver, owns the RGB and
// buzzer pins, and applies the LED polarity so callers always speak in
// "brightness" rather than electrical levels.
package gpio

// Mode is how a pin is claimed.
type Mode int

const (
	// ModeDigital is a plain on/off output.
	ModeDigital Mode = iota
	// ModePWM is an output whose duty ratio can be set continuously.
	ModePWM
	// ModeTone is an output driven with a square wave of variable frequency.
	ModeTone
)

func (m Mode) String() string {
	switch m {
	case ModeDigital:
		return "digital"
	case ModePWM:
		return "pwm"
	case ModeTone:
		return "tone"
	default:
		return "unknown"
	}
}

// Driver is the hardware capability consumed by the Adapter.
// Pin numbers are BCM GPIO numbers.
type Driver interface {
	// Configure claims pin as an output in the given mode and parks it at
	// idleHigh until the first write. Drivers never choose a level
	// themselves, since "off" depends on how the load is wired.
	Configure(pin int, mode Mode, idleHigh bool) error

	// SetDuty sets the fraction of each PWM period the pin is driven high.
	// ratio is in [0, 1].
	SetDuty(pin int, ratio float64) error

	// SetLevel drives the pin high or low.
	SetLevel(pin int, high bool) error

	// Close releases every claimed pin, leaving each at its last level.
	Close() error
}

// ToneDriver is implemented by drivers that can generate a 50% duty square
// wave on a pin without the caller toggling it.
type ToneDriver interface {
	Driver

	// SetFrequency starts a square wave at hz. hz <= 0 silences the pin.
	SetFrequency(pin int, hz float64) error
}
