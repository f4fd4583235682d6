// Package metrics holds the Prometheus instruments of the agent.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "micro_rdk"

type Metrics struct {
	// Collector metrics
	CaptureTotal    *prometheus.CounterVec
	CaptureErrors   *prometheus.CounterVec
	CaptureDuration *prometheus.HistogramVec

	// Sink metrics
	SendErrors *prometheus.CounterVec
	Buffered   *prometheus.CounterVec
	Dropped    *prometheus.CounterVec

	// Monitor metrics
	MonitorRuns      *prometheus.CounterVec
	RestartsSignaled prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CaptureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "captures_total",
				Help:      "Total number of successful capture calls",
			},
			[]string{"component", "method"},
		),
		CaptureErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "capture_errors_total",
				Help:      "Total number of failed capture calls",
			},
			[]string{"component", "method"},
		),
		CaptureDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "capture_duration_seconds",
				Help:      "Capability call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component", "method"},
		),
		SendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sender",
				Name:      "errors_total",
				Help:      "Total number of envelopes the sink rejected",
			},
			[]string{"component"},
		),
		Buffered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "buffer",
				Name:      "stored_total",
				Help:      "Total number of envelopes buffered for retry",
			},
			[]string{"component"},
		),
		Dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "buffer",
				Name:      "dropped_total",
				Help:      "Total number of envelopes lost because buffering failed",
			},
			[]string{"component"},
		),
		MonitorRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "runs_total",
				Help:      "Config monitor invocations by result",
			},
			[]string{"result"},
		),
		RestartsSignaled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "restarts_signaled_total",
				Help:      "Restarts requested by the config monitor",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.CaptureTotal,
			m.CaptureErrors,
			m.CaptureDuration,
			m.SendErrors,
			m.Buffered,
			m.Dropped,
			m.MonitorRuns,
			m.RestartsSignaled,
		)
	}
	return m
}

// ObserveCapture records the outcome of one capability call. A nil receiver
// is a no-op so callers can run without metrics.
func (m *Metrics) ObserveCapture(component, method string, took time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.CaptureErrors.WithLabelValues(component, method).Inc()
		return
	}
	m.CaptureTotal.WithLabelValues(component, method).Inc()
	m.CaptureDuration.WithLabelValues(component, method).Observe(took.Seconds())
}

func (m *Metrics) SendFailed(component string) {
	if m == nil {
		return
	}
	m.SendErrors.WithLabelValues(component).Inc()
}

func (m *Metrics) BufferStored(component string) {
	if m == nil {
		return
	}
	m.Buffered.WithLabelValues(component).Inc()
}

func (m *Metrics) BufferDropped(component string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(component).Inc()
}

func (m *Metrics) MonitorRun(result string) {
	if m == nil {
		return
	}
	m.MonitorRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) RestartSignaled() {
	if m == nil {
		return
	}
	m.RestartsSignaled.Inc()
}
