// Package metrics registers Prometheus metrics for the impersonation overlay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the overlay collectors. A nil *Metrics records nothing.
type Metrics struct {
	Starts              prometheus.Counter
	Stops               prometheus.Counter
	StartsRejected      prometheus.Counter
	RehydrationFailures prometheus.Counter
}

// New creates and registers all overlay metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Starts: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_impersonation_starts_total",
			Help: "Total impersonation overlays started.",
		}),
		Stops: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_impersonation_stops_total",
			Help: "Total impersonation overlays stopped.",
		}),
		StartsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_impersonation_starts_rejected_total",
			Help: "Impersonation start attempts rejected by validation.",
		}),
		RehydrationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_impersonation_rehydration_failures_total",
			Help: "Persisted overlay records discarded as corrupt or invalid.",
		}),
	}
}

func (m *Metrics) IncStarts() {
	if m != nil {
		m.Starts.Inc()
	}
}

func (m *Metrics) IncStops() {
	if m != nil {
		m.Stops.Inc()
	}
}

func (m *Metrics) IncStartsRejected() {
	if m != nil {
		m.StartsRejected.Inc()
	}
}

func (m *Metrics) IncRehydrationFailures() {
	if m != nil {
		m.RehydrationFailures.Inc()
	}
}
