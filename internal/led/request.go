package led

import (
	"strings"
	"time"
)

// InfiniteRepeat and any larger Times value repeats until cancelled.
const InfiniteRepeat = 999

const (
	// DefaultInterval replaces a non-positive step interval.
	DefaultInterval = 300 * time.Millisecond
	// MinInterval is the shortest step interval a run will honour.
	MinInterval = 10 * time.Millisecond
	// PulseSteps is the number of brightness steps in each half of a pulse.
	PulseSteps = 25
)

// Color holds channel intensities in [0, 1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Off is the unlit color.
var Off = Color{}

// ColorFromBytes builds a Color from 0-255 channel values, clamping
// anything outside that range.
func ColorFromBytes(r, g, b int) Color {
	return Color{R: byteRatio(r), G: byteRatio(g), B: byteRatio(b)}
}

func byteRatio(v int) float64 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 1
	default:
		return float64(v) / 255
	}
}

// Scale multiplies every channel by f.
func (c Color) Scale(f float64) Color {
	return Color{R: c.R * f, G: c.G * f, B: c.B * f}
}

// IsOff reports whether every channel is zero.
func (c Color) IsOff() bool {
	return c.R <= 0 && c.G <= 0 && c.B <= 0
}

// Pattern names an effect algorithm.
type Pattern string

const (
	PatternSolid   Pattern = "solid"
	PatternBlink   Pattern = "blink"
	PatternPulse   Pattern = "pulse"
	PatternRainbow Pattern = "rainbow"
)

var patterns = []Pattern{PatternSolid, PatternBlink, PatternPulse, PatternRainbow}

// ParsePattern matches name case-insensitively against the known patterns.
func ParsePattern(name string) (Pattern, bool) {
	p := Pattern(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range patterns {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Patterns returns the pattern names the engine can run.
func Patterns() []string {
	names := make([]string, len(patterns))
	for i, p := range patterns {
		names[i] = string(p)
	}
	return names
}

// rainbowSequence is the fixed cycle for PatternRainbow.
var rainbowSequence = []Color{
	{R: 1},             // red
	{R: 1, G: 1},       // yellow
	{G: 1},             // green
	{G: 1, B: 1},       // cyan
	{B: 1},             // blue
	{R: 1, B: 1},       // magenta
	{R: 1, G: 1, B: 1}, // white
}

// EffectRequest describes one effect run. Hold is only used by Solid;
// Interval is the step unit for the other patterns.
type EffectRequest struct {
	Color    Color
	Pattern  Pattern
	Times    int
	Hold     time.Duration
	Interval time.Duration
}

// Infinite reports whether the request repeats until cancelled.
func (r EffectRequest) Infinite() bool {
	return r.Times >= InfiniteRepeat
}

// StepInterval returns Interval with the fallback and floor applied.
func (r EffectRequest) StepInterval() time.Duration {
	switch {
	case r.Interval <= 0:
		return DefaultInterval
	case r.Interval < MinInterval:
		return MinInterval
	default:
		return r.Interval
	}
}

// repeats calls fn once per repetition until it fails or the count is
// exhausted. Times <= 0 runs nothing.
func (r EffectRequest) repeats(fn func() error) error {
	for i := 0; r.Infinite() || i < r.Times; i++ {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
