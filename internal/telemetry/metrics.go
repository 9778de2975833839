package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EpochsRun counts completed control-loop epochs.
	EpochsRun = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "harvestd",
			Name:      "epochs_total",
			Help:      "Total number of control-loop epochs completed",
		},
	)

	// FramesInjected counts injected 802.11 frames by attack phase.
	FramesInjected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvestd",
			Name:      "frames_injected_total",
			Help:      "Total number of raw 802.11 frames injected",
		},
		[]string{"phase"},
	)

	// InjectionErrors counts failed frame injections.
	InjectionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvestd",
			Name:      "injection_errors_total",
			Help:      "Total number of failed frame injection attempts",
		},
		[]string{"phase"},
	)

	// HandshakesCaptured counts classified captures by quality.
	HandshakesCaptured = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvestd",
			Name:      "handshakes_captured_total",
			Help:      "Total number of classified handshake captures",
		},
		[]string{"quality"},
	)

	// EntitiesTracked is a gauge of the registry's current entity count.
	EntitiesTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "harvestd",
			Name:      "entities_tracked",
			Help:      "Current number of AP/STA entities in the registry",
		},
	)

	// MoodState is 1 for the engine's current mood label, 0 otherwise.
	MoodState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "harvestd",
			Name:      "mood_state",
			Help:      "1 if this is the engine's current mood, else 0",
		},
		[]string{"mood"},
	)

	// CracksSucceeded counts successful dictionary cracks.
	CracksSucceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "harvestd",
			Name:      "cracks_succeeded_total",
			Help:      "Total number of dictionary-cracking successes",
		},
	)

	once sync.Once
)

// InitMetrics registers every metric with the global Prometheus registry.
// Idempotent: safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.MustRegister(EpochsRun)
		prometheus.DefaultRegisterer.MustRegister(FramesInjected)
		prometheus.DefaultRegisterer.MustRegister(InjectionErrors)
		prometheus.DefaultRegisterer.MustRegister(HandshakesCaptured)
		prometheus.DefaultRegisterer.MustRegister(EntitiesTracked)
		prometheus.DefaultRegisterer.MustRegister(MoodState)
		prometheus.DefaultRegisterer.MustRegister(CracksSucceeded)
	})
}
