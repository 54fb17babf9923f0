// Package telemetry exports engine counters to Prometheus.
//
// Metrics implements engine.Metrics. Each Metrics registers its collectors
// on the registerer it is given, so tests and multiple documents can use
// isolated registries.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/vellum/internal/engine"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "vellum"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	// Recomputations counts definition runs.
	// Labels: component_type, variable
	Recomputations *prometheus.CounterVec

	// Invalidations counts variables marked stale.
	// Labels: component_type
	Invalidations *prometheus.CounterVec

	// Inverses counts inverse definition outcomes.
	// Labels: outcome (applied, failed)
	Inverses *prometheus.CounterVec

	// Actions counts processed actions.
	// Labels: action, outcome (applied, failed)
	Actions *prometheus.CounterVec

	// ActionDuration measures action processing time.
	// Labels: action
	ActionDuration *prometheus.HistogramVec

	// Expansions counts composite expansions.
	// Labels: component_type
	Expansions *prometheus.CounterVec
}

var _ engine.Metrics = (*Metrics)(nil)

// New creates the collectors under namespace and registers them with reg.
// An empty namespace uses DefaultNamespace.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &Metrics{
		Recomputations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "recomputations_total",
			Help:      "State variable definitions run, by component type and variable.",
		}, []string{"component_type", "variable"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "invalidations_total",
			Help:      "State variables marked stale, by component type.",
		}, []string{"component_type"}),
		Inverses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "inverses_total",
			Help:      "Inverse definition outcomes.",
		}, []string{"outcome"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "actions_total",
			Help:      "Processed actions by action name and outcome.",
		}, []string{"action", "outcome"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "action_duration_seconds",
			Help:      "Time to process one action, including the updates it requested.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"action"}),
		Expansions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "composite_expansions_total",
			Help:      "Composite components expanded into replacements.",
		}, []string{"component_type"}),
	}

	for _, c := range []prometheus.Collector{
		m.Recomputations, m.Invalidations, m.Inverses,
		m.Actions, m.ActionDuration, m.Expansions,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Recomputed implements engine.Metrics.
func (m *Metrics) Recomputed(componentType, variable string) {
	m.Recomputations.WithLabelValues(componentType, variable).Inc()
}

// Invalidated implements engine.Metrics.
func (m *Metrics) Invalidated(componentType string) {
	m.Invalidations.WithLabelValues(componentType).Inc()
}

// InverseApplied implements engine.Metrics.
func (m *Metrics) InverseApplied(outcome string) {
	m.Inverses.WithLabelValues(outcome).Inc()
}

// ActionProcessed implements engine.Metrics.
func (m *Metrics) ActionProcessed(action, outcome string, elapsed time.Duration) {
	m.Actions.WithLabelValues(action, outcome).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// CompositeExpanded implements engine.Metrics.
func (m *Metrics) CompositeExpanded(componentType string) {
	m.Expansions.WithLabelValues(componentType).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
