// Package metrics exposes Prometheus counters for registrations, check-ins
// and ticket email delivery. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "movienight"

// Metrics holds the application counters.
type Metrics struct {
	registry      *prometheus.Registry
	registrations prometheus.Counter
	checkins      *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New registers the counters on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registrations persisted.",
		}),
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Check-in attempts by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Ticket email attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.registrations,
		m.checkins,
		m.notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegistrationCreated counts one persisted registration.
func (m *Metrics) RegistrationCreated() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

// CheckIn counts one check-in attempt with the given outcome label.
func (m *Metrics) CheckIn(outcome string) {
	if m == nil {
		return
	}
	m.checkins.WithLabelValues(outcome).Inc()
}

// Notification counts one ticket email attempt with the given result label.
func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
