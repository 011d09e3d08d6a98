// Package metrics defines the engine's Prometheus instruments. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Hint outcomes.
const (
	HintAccepted    = "accepted"
	HintInvalid     = "invalid"
	HintError       = "error"
	HintTimeout     = "timeout"
	HintDisabled    = "disabled"
	HintPendingKept = "pending"
)

// Metrics holds the instruments and the registry they are registered in.
type Metrics struct {
	registry *prometheus.Registry

	hintOutcomes *prometheus.CounterVec
	hintLatency  prometheus.Histogram
	skipped      prometheus.Counter
	responses    *prometheus.CounterVec
	invalidated  prometheus.Counter
	transitions  *prometheus.CounterVec
}

// New creates the instruments on a private registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		hintOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalq_hint_outcomes_total",
			Help: "Next-question selections by hint outcome.",
		}, []string{"outcome"}),
		hintLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vitalq_hint_duration_seconds",
			Help:    "Latency of hint provider calls.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 3, 5},
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitalq_questions_skipped_total",
			Help: "Questions skipped by adaptive selection.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalq_responses_recorded_total",
			Help: "Recorded answers, split into first answers and overwrites.",
		}, []string{"kind"}),
		invalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitalq_responses_invalidated_total",
			Help: "Responses deleted because their question stopped applying.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalq_assessment_transitions_total",
			Help: "Assessment status transitions.",
		}, []string{"to"}),
	}
	m.registry.MustRegister(
		m.hintOutcomes, m.hintLatency, m.skipped, m.responses, m.invalidated, m.transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HintOutcome counts one selection by its hint outcome.
func (m *Metrics) HintOutcome(outcome string) {
	if m == nil {
		return
	}
	m.hintOutcomes.WithLabelValues(outcome).Inc()
}

// HintLatency observes one provider call.
func (m *Metrics) HintLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.hintLatency.Observe(d.Seconds())
}

// Skipped counts adaptive skips.
func (m *Metrics) Skipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skipped.Add(float64(n))
}

// ResponseRecorded counts a recorded answer.
func (m *Metrics) ResponseRecorded(firstTime bool) {
	if m == nil {
		return
	}
	kind := "overwrite"
	if firstTime {
		kind = "first"
	}
	m.responses.WithLabelValues(kind).Inc()
}

// Invalidated counts cascade deletions.
func (m *Metrics) Invalidated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invalidated.Add(float64(n))
}

// Transition counts a status change.
func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}
