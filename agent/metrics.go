package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imkonsowa/restaurants-assistant/dialogue"
)

// Metrics counts conversation events.
type Metrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	pages       prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer, sessions *Registry) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_transitions_total",
			Help: "Dialogue state transitions.",
		}, []string{"from", "to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_failures_total",
			Help: "Recoverable conversation failures by kind.",
		}, []string{"kind"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_pages_total",
			Help: "Recommendation pages shown.",
		}),
	}

	reg.MustRegister(m.transitions, m.failures, m.pages)
	if sessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "assistant_sessions",
			Help: "Live sessions in the registry.",
		}, func() float64 {
			return float64(sessions.Len())
		}))
	}

	return m
}

func (m *Metrics) Observe(_ context.Context, e dialogue.Event) {
	switch e.Kind {
	case dialogue.EventTransition:
		m.transitions.WithLabelValues(e.From, e.To).Inc()
	case dialogue.EventFailure:
		m.failures.WithLabelValues(string(e.Failure)).Inc()
	case dialogue.EventPage:
		m.pages.Inc()
	}
}
