// Package metrics provides Prometheus metrics for the content pipeline
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job outcomes recorded by JobsProcessed
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeNoop      = "noop"
)

// Metrics holds all Prometheus metrics for the pipeline
type Metrics struct {
	registry *prometheus.Registry

	// Queue metrics
	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// External service metrics
	ExternalCalls        *prometheus.CounterVec
	ExternalCallDuration *prometheus.HistogramVec

	// Suggestion metrics
	SuggestionsReturned prometheus.Histogram
	AnchorViolations    prometheus.Counter
	ConceptsCreated     prometheus.Counter
	ConceptsSkipped     prometheus.Counter
}

// New creates the metrics on a fresh registry so tests can build many instances
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		JobsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonlens_jobs_enqueued_total",
				Help: "Total number of pipeline jobs enqueued",
			},
			[]string{"kind"},
		),
		JobsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonlens_jobs_processed_total",
				Help: "Total number of pipeline job deliveries by outcome",
			},
			[]string{"kind", "outcome"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lessonlens_job_duration_seconds",
				Help:    "Duration of pipeline job executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		ExternalCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonlens_external_calls_total",
				Help: "Total number of embedding/generative/image calls",
			},
			[]string{"operation", "status"},
		),
		ExternalCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lessonlens_external_call_duration_seconds",
				Help:    "Duration of external AI calls in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),

		SuggestionsReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lessonlens_relation_suggestions_returned",
			Help:    "Number of relation suggestions returned per request",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		}),
		AnchorViolations: factory.NewCounter(prometheus.CounterOpts{
			Name: "lessonlens_anchor_violations_total",
			Help: "Total number of suggested anchors failing validation",
		}),
		ConceptsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "lessonlens_concepts_created_total",
			Help: "Total number of concepts created by extraction",
		}),
		ConceptsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "lessonlens_concepts_skipped_total",
			Help: "Total number of extracted terms skipped",
		}),
	}
}

// RecordJob records one job delivery
func (m *Metrics) RecordJob(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(kind, outcome).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordExternalCall records one outbound AI call
func (m *Metrics) RecordExternalCall(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ExternalCalls.WithLabelValues(operation, status).Inc()
	m.ExternalCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
