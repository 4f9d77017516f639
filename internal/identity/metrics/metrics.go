// Package metrics registers Prometheus metrics for the identity plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the identity-plane Prometheus collectors. A nil *Metrics is
// valid and records nothing, so wiring metrics stays optional.
type Metrics struct {
	SignIns               prometheus.Counter
	SignInFailures        prometheus.Counter
	SignOuts              prometheus.Counter
	SignUps               prometheus.Counter
	RoleResolutions       prometheus.Counter
	RoleResolutionErrors  prometheus.Counter
	ProfileFetchFailures  prometheus.Counter
	StaleResultsDiscarded prometheus.Counter
}

// New creates and registers all identity metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignIns: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_signins_total",
			Help: "Total successful sign-ins.",
		}),
		SignInFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_signin_failures_total",
			Help: "Total rejected sign-in attempts.",
		}),
		SignOuts: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_signouts_total",
			Help: "Total sign-outs.",
		}),
		SignUps: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_signups_total",
			Help: "Total account registrations.",
		}),
		RoleResolutions: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_role_resolutions_total",
			Help: "Total role resolution runs.",
		}),
		RoleResolutionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_role_resolution_errors_total",
			Help: "Role resolution runs that degraded to default flags.",
		}),
		ProfileFetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_profile_fetch_failures_total",
			Help: "Profile fetches that failed and left the profile empty.",
		}),
		StaleResultsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "wellgate_stale_results_discarded_total",
			Help: "Resolver results discarded because the identity changed mid-flight.",
		}),
	}
}

func (m *Metrics) IncSignIns() {
	if m != nil {
		m.SignIns.Inc()
	}
}

func (m *Metrics) IncSignInFailures() {
	if m != nil {
		m.SignInFailures.Inc()
	}
}

func (m *Metrics) IncSignOuts() {
	if m != nil {
		m.SignOuts.Inc()
	}
}

func (m *Metrics) IncSignUps() {
	if m != nil {
		m.SignUps.Inc()
	}
}

func (m *Metrics) IncRoleResolutions() {
	if m != nil {
		m.RoleResolutions.Inc()
	}
}

func (m *Metrics) IncRoleResolutionErrors() {
	if m != nil {
		m.RoleResolutionErrors.Inc()
	}
}

func (m *Metrics) IncProfileFetchFailures() {
	if m != nil {
		m.ProfileFetchFailures.Inc()
	}
}

func (m *Metrics) IncStaleResultsDiscarded() {
	if m != nil {
		m.StaleResultsDiscarded.Inc()
	}
}
