package page

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels of the operations counter.
const (
	OutcomeSuccess         = "success"
	OutcomeNotFound        = "not_found"
	OutcomeNotInteractable = "not_interactable"
	OutcomeError           = "error"
)

// Metrics counts page operations and times element resolution.
type Metrics struct {
	operations *prometheus.CounterVec
	resolve    prometheus.Histogram
	artifacts  prometheus.Counter
}

// NewMetrics registers the page collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagerun",
			Subsystem: "page",
			Name:      "operations_total",
			Help:      "Page operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		resolve: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pagerun",
			Subsystem: "page",
			Name:      "resolve_seconds",
			Help:      "Time spent resolving elements, including failed lookups.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		artifacts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pagerun",
			Subsystem: "page",
			Name:      "diagnostic_screenshots_total",
			Help:      "Screenshots saved after an element lookup timed out.",
		}),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrElementNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrNotInteractable):
		return OutcomeNotInteractable
	}
	return OutcomeError
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) observeResolve(seconds float64) {
	if m == nil {
		return
	}
	m.resolve.Observe(seconds)
}

func (m *Metrics) artifactSaved() {
	if m == nil {
		return
	}
	m.artifacts.Inc()
}
