package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registration outcomes recorded by the intake endpoint.
const (
	OutcomeCreated   = "created"
	OutcomeInvalid   = "invalid"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// IntakeMetrics exposes counters/histograms for the lead intake endpoint.
type IntakeMetrics struct {
	registrations   *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kazdocs",
			Subsystem: "intake",
			Name:      "registrations_total",
			Help:      "Lead registrations by outcome",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kazdocs",
			Subsystem: "intake",
			Name:      "registration_latency_seconds",
			Help:      "Latency of lead registration requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kazdocs",
			Subsystem: "intake",
			Name:      "events_published_total",
			Help:      "Contact events handed to the publisher",
		}, []string{"type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.registrations, m.latency, m.eventsPublished)
	return m
}

func (m *IntakeMetrics) ObserveRegistration(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
	m.latency.WithLabelValues(outcome).Observe(seconds)
}

func (m *IntakeMetrics) ObservePublish(eventType string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.eventsPublished.WithLabelValues(eventType, status).Inc()
}
