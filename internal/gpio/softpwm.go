package gpio

import (
	"sync"
	"time"
)

// softPWM bit-bangs a PWM signal on a pin that has no PWM hardware.
// Duty 0 and 1 park the pin at a steady level instead of toggling.
// softPWM never picks a level on its own: it starts parked at the level it
// was created with and Close leaves the pin where the last Set put it.
type softPWM struct {
	write func(high bool)

	mu     sync.Mutex
	period time.Duration
	duty   float64

	changed chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

func newSoftPWM(write func(high bool), high bool) *softPWM {
	s := &softPWM{
		write:   write,
		changed: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if high {
		s.duty = 1
	}
	go s.run()
	return s
}

// Set changes the waveform. It takes effect at the end of the current period.
func (s *softPWM) Set(period time.Duration, duty float64) {
	s.mu.Lock()
	s.period = period
	s.duty = clamp(duty)
	s.mu.Unlock()

	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Close stops the goroutine. A steady duty that has not been written yet is
// written first, so Set followed by Close always lands on that level. A pin
// stopped mid-waveform keeps whatever level it was at.
func (s *softPWM) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

func (s *softPWM) run() {
	defer close(s.done)
	defer s.settle()

	for {
		s.mu.Lock()
		period, duty := s.period, s.duty
		s.mu.Unlock()

		switch {
		case duty <= 0:
			s.write(false)
			if !s.waitChange() {
				return
			}
		case duty >= 1:
			s.write(true)
			if !s.waitChange() {
				return
			}
		case period <= 0:
			s.write(false)
			if !s.waitChange() {
				return
			}
		default:
			on := time.Duration(float64(period) * duty)
			s.write(true)
			if !s.sleep(on) {
				return
			}
			s.write(false)
			if !s.sleep(period - on) {
				return
			}
		}
	}
}

// settle writes the pending steady level, if any, once the loop has stopped.
func (s *softPWM) settle() {
	select {
	case <-s.changed:
	default:
		return
	}

	s.mu.Lock()
	duty := s.duty
	s.mu.Unlock()

	switch {
	case duty <= 0:
		s.write(false)
	case duty >= 1:
		s.write(true)
	}
}

func (s *softPWM) waitChange() bool {
	select {
	case <-s.changed:
		return true
	case <-s.stop:
		return false
	}
}

func (s *softPWM) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stop:
		return false
	}
}
