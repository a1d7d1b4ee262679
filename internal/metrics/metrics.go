// Package metrics exposes prometheus collectors for the booking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eventbooking"

// Metrics groups the engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reservations     *prometheus.CounterVec
	releases         prometheus.Counter
	refunds          *prometheus.CounterVec
	cascadeOutcomes  *prometheus.CounterVec
	sweepTransitions *prometheus.CounterVec
	sideChannelFails *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reservations_total",
			Help:      "Capacity reservations by tier and result.",
		}, []string{"tier", "result"}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "releases_total",
			Help:      "Capacity releases.",
		}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Completed refunds by path.",
		}, []string{"path"}),
		cascadeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cancellation",
			Name:      "registrations_total",
			Help:      "Registrations settled by the cancellation cascade, by resulting status.",
		}, []string{"outcome"}),
		sweepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "transitions_total",
			Help:      "Event status transitions made by the temporal sweep.",
		}, []string{"to"}),
		sideChannelFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_channel_failures_total",
			Help:      "Failed best-effort notifications and live updates.",
		}, []string{"channel"}),
	}
	reg.MustRegister(m.reservations, m.releases, m.refunds, m.cascadeOutcomes, m.sweepTransitions, m.sideChannelFails)
	return m
}

func (m *Metrics) ObserveReservation(tier, result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) IncRelease() {
	if m == nil {
		return
	}
	m.releases.Inc()
}

func (m *Metrics) IncRefund(path string) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(path).Inc()
}

func (m *Metrics) IncCascadeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.cascadeOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncSweepTransition(to string) {
	if m == nil {
		return
	}
	m.sweepTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) IncSideChannelFailure(channel string) {
	if m == nil {
		return
	}
	m.sideChannelFails.WithLabelValues(channel).Inc()
}
