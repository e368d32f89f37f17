package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics records outbox publisher progress.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	parked    *prometheus.CounterVec
}

// NewOutboxMetrics registers the publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events delivered to their handler.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_failed_total",
		Help: "Outbox delivery attempts that will be retried.",
	}, []string{"event_type"})
	parked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_parked_total",
		Help: "Outbox events that will not be retried.",
	}, []string{"event_type"})
	reg.MustRegister(published, failed, parked)
	return &OutboxMetrics{published: published, failed: failed, parked: parked}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncParked(eventType string) {
	if m == nil || m.parked == nil {
		return
	}
	m.parked.WithLabelValues(normalizeLabel(eventType)).Inc()
}
