// Package telemetry defines the factory's prometheus metrics. Grounded on
// the teacher's controllers/metrics.go: the same CounterVec/Histogram shape
// and MustRegister-in-constructor pattern, registered against an owned
// prometheus.Registry instead of controller-runtime's global one (there is
// no controller-runtime manager in this domain to piggyback on).
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/histogram the deployment pipeline (C6/C7)
// and factory front (C8) emit.
type Metrics struct {
	Registry *prometheus.Registry

	PipelineStateTotal      *prometheus.CounterVec
	PipelineStateErrorTotal *prometheus.CounterVec
	PipelineDuration        *prometheus.HistogramVec
	CreateTotal             prometheus.Counter
	CreateErrorTotal        prometheus.Counter
	UnwindTotal             prometheus.Counter
}

// New builds a fresh Metrics bundle with its own registry and registers
// every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PipelineStateTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavefactory_pipeline_state_total",
				Help: "Number of deployment pipeline state transitions.",
			},
			[]string{"state"},
		),
		PipelineStateErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavefactory_pipeline_state_error_total",
				Help: "Number of deployment pipeline state transitions that failed.",
			},
			[]string{"state"},
		),
		PipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wavefactory_pipeline_duration_seconds",
				Help:    "Time spent in each deployment pipeline state.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"state"},
		),
		CreateTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavefactory_create_total",
			Help: "Total number of Factory.Create invocations.",
		}),
		CreateErrorTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavefactory_create_error_total",
			Help: "Total number of Factory.Create invocations that failed and were unwound.",
		}),
		UnwindTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavefactory_unwind_total",
			Help: "Total number of failure unwinds performed.",
		}),
	}

	m.Registry.MustRegister(
		m.PipelineStateTotal,
		m.PipelineStateErrorTotal,
		m.PipelineDuration,
		m.CreateTotal,
		m.CreateErrorTotal,
		m.UnwindTotal,
	)

	return m
}
