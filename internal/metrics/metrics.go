// Package metrics records generation pipeline metrics.
//
// Metrics:
//   - generation_total{outcome} - finished tasks by terminal state
//   - generation_duration_seconds{outcome} - task duration from start to finish
//   - generation_tasks_active - tasks currently executing
//   - docgen_generation_attempts - authoring attempts per finished task
//   - docgen_authoring_circuit_state{breaker} - 0 closed, 1 half open, 2 open
package metrics

import (
	"net/http"
	"time"

	"github.com/phrazzld/docgen/internal/breaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives pipeline measurements. Implementations must not block.
type Recorder interface {
	TaskStarted()
	TaskFinished(outcome string, duration time.Duration, attempts int)
	CircuitStateChanged(name string, state breaker.State)
}

// Prometheus is a Recorder backed by its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	generationTotal    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	tasksActive        prometheus.Gauge
	attempts           prometheus.Histogram
	circuitState       *prometheus.GaugeVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates a Recorder with a fresh registry that also carries
// the Go runtime and process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		generationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_total",
				Help: "Total number of generation tasks by terminal outcome",
			},
			[]string{"outcome"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "generation_duration_seconds",
				Help:    "Duration of generation tasks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
			},
			[]string{"outcome"},
		),
		tasksActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "generation_tasks_active",
				Help: "Number of generation tasks currently executing",
			},
		),
		attempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docgen_generation_attempts",
				Help:    "Authoring attempts per finished generation task",
				Buckets: []float64{1, 2, 3, 4, 5, 8},
			},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "docgen_authoring_circuit_state",
				Help: "Circuit breaker state: 0 closed, 1 half open, 2 open",
			},
			[]string{"breaker"},
		),
	}
}

// TaskStarted implements Recorder.
func (p *Prometheus) TaskStarted() {
	p.tasksActive.Inc()
}

// TaskFinished implements Recorder.
func (p *Prometheus) TaskFinished(outcome string, duration time.Duration, attempts int) {
	p.tasksActive.Dec()
	p.generationTotal.WithLabelValues(outcome).Inc()
	p.generationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if attempts > 0 {
		p.attempts.Observe(float64(attempts))
	}
}

// CircuitStateChanged implements Recorder.
func (p *Prometheus) CircuitStateChanged(name string, state breaker.State) {
	p.circuitState.WithLabelValues(name).Set(float64(state))
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Nop is a Recorder that discards everything.
type Nop struct{}

// TaskStarted implements Recorder.
func (Nop) TaskStarted() {}

// TaskFinished implements Recorder.
func (Nop) TaskFinished(string, time.Duration, int) {}

// CircuitStateChanged implements Recorder.
func (Nop) CircuitStateChanged(string, breaker.State) {}
