package gpio_test

import (
	"errors"
	"testing"

	"github.com/smazurov/lightnode/internal/gpio"
	"github.com/smazurov/lightnode/internal/gpio/gpiotest"
)

var testPins = gpio.Pins{Red: 17, Green: 27, Blue: 22, Buzzer: 18}

func TestNewAdapter_ClaimsPins(t *testing.T) {
	rec := gpiotest.NewRecorder()
	if _, err := gpio.NewAdapter(rec, testPins, false); err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	for _, pin := range []int{testPins.Red, testPins.Green, testPins.Blue} {
		if mode, ok := rec.Mode(pin); !ok || mode != gpio.ModePWM {
			t.Errorf("pin %d mode = %v (claimed %v), want pwm", pin, mode, ok)
		}
	}
	if mode, _ := rec.Mode(testPins.Buzzer); mode != gpio.ModeTone {
		t.Errorf("buzzer mode = %v, want tone", mode)
	}

	// Everything starts off.
	for _, pin := range []int{testPins.Red, testPins.Green, testPins.Blue} {
		w, ok := rec.Last(pin)
		if !ok || w.Value != 0 {
			t.Errorf("pin %d last write = %+v, want duty 0", pin, w)
		}
	}
	if w, _ := rec.Last(testPins.Buzzer); w.Kind != gpiotest.KindLevel || w.Value != 0 {
		t.Errorf("buzzer last write = %+v, want level low", w)
	}
}

func TestNewAdapter_DigitalBuzzer(t *testing.T) {
	rec := gpiotest.NewRecorder()
	a, err := gpio.NewAdapter(rec.WithoutTone(), testPins, false)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if a.CanTone() {
		t.Error("CanTone() = true for a driver without SetFrequency")
	}
	if mode, _ := rec.Mode(testPins.Buzzer); mode != gpio.ModeDigital {
		t.Errorf("buzzer mode = %v, want digital", mode)
	}
	if err := a.Tone(440); err == nil {
		t.Error("Tone() succeeded without tone support")
	}
}

func TestNewAdapter_ClaimFailure(t *testing.T) {
	rec := gpiotest.NewRecorder()
	rec.FailClaims(errors.New("pin busy"))
	if _, err := gpio.NewAdapter(rec, testPins, false); err == nil {
		t.Fatal("NewAdapter() succeeded with failing claims")
	}
}

func TestAdapter_Polarity(t *testing.T) {
	tests := []struct {
		name      string
		activeLow bool
		ratio     float64
		want      float64
	}{
		{"active high full", false, 1, 1},
		{"active high off", false, 0, 0},
		{"active high half", false, 0.25, 0.25},
		{"active low full", true, 1, 0},
		{"active low off", true, 0, 1},
		{"active low quarter", true, 0.25, 0.75},
		{"clamped above", false, 1.7, 1},
		{"clamped below", true, -0.5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := gpiotest.NewRecorder()
			a, err := gpio.NewAdapter(rec, testPins, tt.activeLow)
			if err != nil {
				t.Fatalf("NewAdapter() error = %v", err)
			}
			if err := a.SetChannel(testPins.Red, tt.ratio); err != nil {
				t.Fatalf("SetChannel() error = %v", err)
			}
			w, _ := rec.Last(testPins.Red)
			if w.Value != tt.want {
				t.Errorf("duty = %v, want %v", w.Value, tt.want)
			}
		})
	}
}

func TestAdapter_SetLevelPolarity(t *testing.T) {
	rec := gpiotest.NewRecorder()
	a, err := gpio.NewAdapter(rec, testPins, true)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if err := a.SetLevel(testPins.Green, true); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if w, _ := rec.Last(testPins.Green); w.Value != 0 {
		t.Errorf("active-low on wrote level %v, want 0", w.Value)
	}
}

func TestAdapter_Lit(t *testing.T) {
	rec := gpiotest.NewRecorder()
	a, err := gpio.NewAdapter(rec, testPins, false)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if a.Lit() {
		t.Error("Lit() = true after construction")
	}
	if err := a.SetRGB(0, 0.5, 0); err != nil {
		t.Fatal(err)
	}
	if !a.Lit() {
		t.Error("Lit() = false after SetRGB(0, 0.5, 0)")
	}
	if err := a.LightsOff(); err != nil {
		t.Fatal(err)
	}
	if a.Lit() {
		t.Error("Lit() = true after LightsOff")
	}
}

func TestAdapter_SilenceAndClose(t *testing.T) {
	rec := gpiotest.NewRecorder()
	a, err := gpio.NewAdapter(rec, testPins, false)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if err := a.Tone(2000); err != nil {
		t.Fatalf("Tone() error = %v", err)
	}
	rec.Reset()

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !rec.Closed() {
		t.Error("driver not closed")
	}

	writes := rec.WritesFor(testPins.Buzzer)
	if len(writes) != 2 {
		t.Fatalf("buzzer writes = %+v, want frequency 0 then level low", writes)
	}
	if writes[0].Kind != gpiotest.KindFrequency || writes[0].Value != 0 {
		t.Errorf("first write = %+v, want frequency 0", writes[0])
	}
	if writes[1].Kind != gpiotest.KindLevel || writes[1].Value != 0 {
		t.Errorf("second write = %+v, want level low", writes[1])
	}
}

func TestAdapter_CloseLeavesActiveLowLEDOff(t *testing.T) {
	rec := gpiotest.NewRecorder()
	a, err := gpio.NewAdapter(rec, testPins, true)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	rgb := []int{testPins.Red, testPins.Green, testPins.Blue}
	for _, pin := range rgb {
		if !rec.IdleHigh(pin) {
			t.Errorf("pin %d claimed idle low, common anode lights up", pin)
		}
	}
	if rec.IdleHigh(testPins.Buzzer) {
		t.Error("buzzer claimed idle high")
	}

	if err := a.SetRGB(1, 0.5, 0); err != nil {
		t.Fatalf("SetRGB() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Off under common anode is electrically high.
	for _, pin := range rgb {
		w, ok := rec.Last(pin)
		if !ok || w.Kind != gpiotest.KindDuty || w.Value != 1 {
			t.Errorf("pin %d final write = %+v, want duty 1", pin, w)
		}
	}
	if w, _ := rec.Last(testPins.Buzzer); w.Value != 0 {
		t.Errorf("buzzer final write = %+v, want low", w)
	}
}

func TestAdapter_WriteError(t *testing.T) {
	rec := gpiotest.NewRecorder()
	a, err := gpio.NewAdapter(rec, testPins, false)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	boom := errors.New("bus fault")
	rec.FailWrites(testPins.Blue, boom)

	if err := a.SetRGB(1, 1, 1); !errors.Is(err, boom) {
		t.Errorf("SetRGB() error = %v, want %v", err, boom)
	}
}
