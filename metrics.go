package arena

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors updated by arenas. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	allocations      prometheus.Counter
	allocatedBytes   prometheus.Counter
	exhaustions      prometheus.Counter
	growths          prometheus.Counter
	bufferFailures   prometheus.Counter
	destructors      prometheus.Counter
	destructorPanics prometheus.Counter
	capacityBytes    prometheus.Gauge
}

// NewMetrics creates the arena collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		allocations: f.NewCounter(prometheus.CounterOpts{
			Name: "slotarena_allocations_total",
			Help: "Total number of successful slot allocations.",
		}),
		allocatedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "slotarena_allocated_bytes_total",
			Help: "Total payload bytes handed out, excluding headers and padding.",
		}),
		exhaustions: f.NewCounter(prometheus.CounterOpts{
			Name: "slotarena_exhausted_total",
			Help: "Number of allocations an arena could not fit.",
		}),
		growths: f.NewCounter(prometheus.CounterOpts{
			Name: "slotarena_growths_total",
			Help: "Number of arenas appended to a growing arena after the first.",
		}),
		bufferFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "slotarena_buffer_failures_total",
			Help: "Number of arena buffers that could not be allocated.",
		}),
		destructors: f.NewCounter(prometheus.CounterOpts{
			Name: "slotarena_destructors_total",
			Help: "Number of destructors run at teardown.",
		}),
		destructorPanics: f.NewCounter(prometheus.CounterOpts{
			Name: "slotarena_destructor_panics_total",
			Help: "Number of destructors that panicked at teardown.",
		}),
		capacityBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "slotarena_capacity_bytes",
			Help: "Capacity of all live arena buffers.",
		}),
	}
}

func (m *Metrics) allocated(size uintptr) {
	if m == nil {
		return
	}
	m.allocations.Inc()
	m.allocatedBytes.Add(float64(size))
}

func (m *Metrics) exhausted() {
	if m == nil {
		return
	}
	m.exhaustions.Inc()
}

func (m *Metrics) grew() {
	if m == nil {
		return
	}
	m.growths.Inc()
}

func (m *Metrics) bufferFailed() {
	if m == nil {
		return
	}
	m.bufferFailures.Inc()
}

func (m *Metrics) destructorRun() {
	if m == nil {
		return
	}
	m.destructors.Inc()
}

func (m *Metrics) destructorPanicked() {
	if m == nil {
		return
	}
	m.destructorPanics.Inc()
}

func (m *Metrics) capacityChanged(delta int) {
	if m == nil {
		return
	}
	m.capacityBytes.Add(float64(delta))
}
