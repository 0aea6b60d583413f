// Package metrics holds the Prometheus collectors for the wizard service.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kurs"

// Metrics reports generation calls, produced reports and stage transitions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	generationCalls    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	reportsGenerated   *prometheus.CounterVec
	stageTransitions   *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg and panics on a
// registration conflict that cannot be resolved by reuse.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		generationCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "calls_total",
				Help:      "Generation calls to the model API by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "call_duration_seconds",
				Help:      "Latency of generation calls to the model API.",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"kind"},
		),
		reportsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "report",
				Name:      "generated_total",
				Help:      "PDF reports assembled, by outcome.",
			},
			[]string{"outcome"},
		),
		stageTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wizard",
				Name:      "stage_entered_total",
				Help:      "Number of times a session entered a stage.",
			},
			[]string{"stage"},
		),
	}

	m.generationCalls = register(reg, m.generationCalls)
	m.generationDuration = register(reg, m.generationDuration)
	m.reportsGenerated = register(reg, m.reportsGenerated)
	m.stageTransitions = register(reg, m.stageTransitions)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveGeneration records one generation call.
func (m *Metrics) ObserveGeneration(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generationCalls.WithLabelValues(kind, outcome).Inc()
	m.generationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) ReportGenerated(outcome string) {
	if m == nil {
		return
	}
	m.reportsGenerated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StageEntered(stage string) {
	if m == nil {
		return
	}
	m.stageTransitions.WithLabelValues(stage).Inc()
}
