// Package metrics exposes Prometheus instrumentation for the sampling and
// capture pipelines. A nil *Metrics is valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "netpulse"

// Stream labels for persistence failures.
const (
	StreamRates  = "rates"
	StreamEvents = "events"
)

// Metrics groups every collector registered by the process.
type Metrics struct {
	Ticks          prometheus.Counter
	SampleErrors   prometheus.Counter
	WindowLength   prometheus.Gauge
	EventsCaptured prometheus.Counter
	EventsDropped  prometheus.Counter
	EventsInvalid  prometheus.Counter
	EventsRecorded prometheus.Counter
	WriteErrors    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg when non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sampler", Name: "ticks_total",
			Help: "Sampling ticks that produced a rate sample.",
		}),
		SampleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sampler", Name: "errors_total",
			Help: "Interface counter reads that failed.",
		}),
		WindowLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "sampler", Name: "window_samples",
			Help: "Rate samples currently held in the window.",
		}),
		EventsCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "events_total",
			Help: "Packet events read from the kernel ring buffer.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "events_dropped_total",
			Help: "Packet events dropped because the recorder queue was full.",
		}),
		EventsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "events_invalid_total",
			Help: "Ring buffer records that could not be decoded.",
		}),
		EventsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "recorder", Name: "events_total",
			Help: "Packet events written to the event log.",
		}),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "persist", Name: "write_errors_total",
			Help: "Rows that failed to persist, by stream.",
		}, []string{"stream"}),
	}
	if reg != nil {
		reg.MustRegister(m.Ticks, m.SampleErrors, m.WindowLength,
			m.EventsCaptured, m.EventsDropped, m.EventsInvalid, m.EventsRecorded, m.WriteErrors)
	}
	return m
}

func (m *Metrics) IncTicks() {
	if m != nil {
		m.Ticks.Inc()
	}
}

func (m *Metrics) IncSampleErrors() {
	if m != nil {
		m.SampleErrors.Inc()
	}
}

func (m *Metrics) SetWindowLength(n int) {
	if m != nil {
		m.WindowLength.Set(float64(n))
	}
}

func (m *Metrics) IncCaptured() {
	if m != nil {
		m.EventsCaptured.Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

func (m *Metrics) IncInvalid() {
	if m != nil {
		m.EventsInvalid.Inc()
	}
}

func (m *Metrics) IncRecorded() {
	if m != nil {
		m.EventsRecorded.Inc()
	}
}

func (m *Metrics) IncWriteErrors(stream string) {
	if m != nil {
		m.WriteErrors.WithLabelValues(stream).Inc()
	}
}
