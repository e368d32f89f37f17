package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// WebhookMetrics records Stripe webhook handling.
type WebhookMetrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Payment webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_webhook_duration_seconds",
		Help:    "Time spent handling payment webhook events.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	reg.MustRegister(events, duration)
	return &WebhookMetrics{events: events, duration: duration}
}

// Observe counts one event and its handling time.
func (m *WebhookMetrics) Observe(eventType, outcome string, elapsed time.Duration) {
	if m == nil || m.events == nil {
		return
	}
	eventType = normalizeLabel(eventType)
	m.events.WithLabelValues(eventType, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
