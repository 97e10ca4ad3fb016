package nats

import (
	"math"
	"testing"
	"time"
)

func TestUnmarshalLightDefaults(t *testing.T) {
	m, err := UnmarshalLight([]byte(`{"r":10}`))
	if err != nil {
		t.Fatalf("UnmarshalLight() error = %v", err)
	}
	want := DefaultLight()
	want.R = 10
	if m != want {
		t.Errorf("got %+v, want %+v", m, want)
	}
	if m.HoldDuration() != 5*time.Second {
		t.Errorf("HoldDuration() = %v", m.HoldDuration())
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	tests := []string{"", "null", "42", `"solid"`, `[]`, `{"r":`, `{"times":"x"}`}
	for _, in := range tests {
		if _, err := UnmarshalLight([]byte(in)); err == nil {
			t.Errorf("UnmarshalLight(%q) succeeded", in)
		}
		if _, err := UnmarshalTone([]byte(in)); err == nil && in != `{"times":"x"}` {
			t.Errorf("UnmarshalTone(%q) succeeded", in)
		}
	}
}

func TestToneDuration(t *testing.T) {
	m, err := UnmarshalTone([]byte(`{"duration":250}`))
	if err != nil {
		t.Fatalf("UnmarshalTone() error = %v", err)
	}
	if m.Frequency != 1000 {
		t.Errorf("Frequency = %v, want 1000", m.Frequency)
	}
	if m.ToneDuration() != 250*time.Millisecond {
		t.Errorf("ToneDuration() = %v", m.ToneDuration())
	}
}

func TestDurationsSaturate(t *testing.T) {
	const forever = time.Duration(math.MaxInt64)

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"hold 1e12 s", LightMessage{Duration: 1e12}.HoldDuration(), forever},
		{"interval 1e12 s", LightMessage{Interval: 1e12}.StepInterval(), forever},
		{"tone 1e300 ms", ToneMessage{Duration: 1e300}.ToneDuration(), forever},
		{"tone 1e12 ms", ToneMessage{Duration: 1e12}.ToneDuration(), 1e12 * time.Millisecond},
		{"negative hold", LightMessage{Duration: -1e12}.HoldDuration(), time.Duration(math.MinInt64)},
		{"hold 9.2e9 s", LightMessage{Duration: 9.2e9}.HoldDuration(), 9200000000 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
			if tt.want > 0 && tt.got < 0 {
				t.Errorf("positive duration wrapped to %v", tt.got)
			}
		})
	}
}

func TestHugeHoldDecodes(t *testing.T) {
	m, err := UnmarshalLight([]byte(`{"pattern":"solid","duration":1e12}`))
	if err != nil {
		t.Fatalf("UnmarshalLight() error = %v", err)
	}
	if d := m.HoldDuration(); d <= 0 {
		t.Errorf("HoldDuration() = %v, want a positive hold", d)
	}
}
