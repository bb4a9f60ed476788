// Package metrics exposes pipeline counters in Prometheus format.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Oracle call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeIdle    = "idle" // no frame was waiting
)

// Metrics holds all application collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed  prometheus.Counter
	handoffDrops     prometheus.Counter
	oracleCalls      *prometheus.CounterVec
	oracleLatency    prometheus.Histogram
	alertTransitions *prometheus.CounterVec
	timers           *prometheus.GaugeVec
	viewers          prometheus.Gauge
	sessionResets    prometheus.Counter
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctor_frames_processed_total",
			Help: "Frames analyzed by the capture loop",
		}),
		handoffDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctor_handoff_dropped_total",
			Help: "Frames overwritten in the detector mailbox before being consumed",
		}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_oracle_calls_total",
			Help: "Remote detector cycles by outcome",
		}, []string{"outcome"}),
		oracleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proctor_oracle_latency_seconds",
			Help:    "Remote detector round trip time",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5},
		}),
		alertTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_alert_transitions_total",
			Help: "Announced alert changes by new alert kind",
		}, []string{"kind"}),
		timers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "proctor_signal_timer_frames",
			Help: "Current value of the signal counters",
		}, []string{"timer"}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proctor_stream_viewers",
			Help: "Connected MJPEG viewers",
		}),
		sessionResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctor_session_resets_total",
			Help: "Explicit session resets",
		}),
	}

	m.registry.MustRegister(
		m.framesProcessed,
		m.handoffDrops,
		m.oracleCalls,
		m.oracleLatency,
		m.alertTransitions,
		m.timers,
		m.viewers,
		m.sessionResets,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameProcessed() {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
}

func (m *Metrics) HandoffDropped() {
	if m == nil {
		return
	}
	m.handoffDrops.Inc()
}

// OracleCall records one detector cycle. Latency is only observed for calls
// that reached the network.
func (m *Metrics) OracleCall(outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.oracleCalls.WithLabelValues(outcome).Inc()
	if outcome != OutcomeIdle {
		m.oracleLatency.Observe(latency.Seconds())
	}
}

func (m *Metrics) AlertTransition(kind string) {
	if m == nil {
		return
	}
	m.alertTransitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetTimers(absence, intruder, attention int) {
	if m == nil {
		return
	}
	m.timers.WithLabelValues("absence").Set(float64(absence))
	m.timers.WithLabelValues("intruder").Set(float64(intruder))
	m.timers.WithLabelValues("attention").Set(float64(attention))
}

func (m *Metrics) SetViewers(n int) {
	if m == nil {
		return
	}
	m.viewers.Set(float64(n))
}

func (m *Metrics) SessionReset() {
	if m == nil {
		return
	}
	m.sessionResets.Inc()
}
