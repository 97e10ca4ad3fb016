// Package metrics exposes Prometheus metrics for effects, tones and the
// command transport. Values are fed from the event bus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/lightnode/internal/events"
)

var (
	effectsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lightnode",
		Subsystem: "effect",
		Name:      "started_total",
		Help:      "Effect runs started",
	}, []string{"pattern"})

	effectsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lightnode",
		Subsystem: "effect",
		Name:      "finished_total",
		Help:      "Effect runs finished, by outcome",
	}, []string{"pattern", "outcome"})

	effectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lightnode",
		Subsystem: "effect",
		Name:      "duration_seconds",
		Help:      "Effect run duration",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"pattern"})

	effectsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lightnode",
		Subsystem: "effect",
		Name:      "active",
		Help:      "Effect runs in progress",
	})

	tonesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lightnode",
		Subsystem: "buzzer",
		Name:      "tones_total",
		Help:      "Tones played",
	})

	commandsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lightnode",
		Subsystem: "command",
		Name:      "dropped_total",
		Help:      "Malformed command payloads dropped",
	}, []string{"subject"})

	natsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lightnode",
		Subsystem: "nats",
		Name:      "connected",
		Help:      "1 while the command subscription is connected",
	})
)

// Register feeds the metrics from bus. Call the returned function to stop.
func Register(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.EffectStartedEvent) {
			effectsStarted.WithLabelValues(e.Pattern).Inc()
			effectsActive.Inc()
		}),
		bus.Subscribe(func(e events.EffectFinishedEvent) {
			effectsFinished.WithLabelValues(e.Pattern, e.Outcome).Inc()
			effectsActive.Dec()
			if d, err := time.ParseDuration(e.Elapsed); err == nil {
				effectDuration.WithLabelValues(e.Pattern).Observe(d.Seconds())
			}
		}),
		bus.Subscribe(func(events.ToneEvent) {
			tonesTotal.Inc()
		}),
		bus.Subscribe(func(e events.CommandDroppedEvent) {
			commandsDropped.WithLabelValues(e.Subject).Inc()
		}),
		bus.Subscribe(func(e events.ConnectionEvent) {
			if e.State == "disconnected" {
				natsConnected.Set(0)
			} else {
				natsConnected.Set(1)
			}
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
