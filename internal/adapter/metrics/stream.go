package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics holds Prometheus metrics for the change broadcast hub.
type HubMetrics struct {
	Subscribers       prometheus.Gauge
	EventsPublished   *prometheus.CounterVec
	MessagesDelivered prometheus.Counter
	Evictions         prometheus.Counter
	Rejected          prometheus.Counter
}

// NewHubMetrics creates and registers broadcast hub metrics on the given registry.
func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of active stream subscribers.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "events_published_total",
			Help:      "Total number of change events fanned out, by feed.",
		}, []string{"feed"}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_enqueued_total",
			Help:      "Total number of messages enqueued to subscribers.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "overflow_evictions_total",
			Help:      "Subscribers disconnected because their queue was full.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "rejected_subscriptions_total",
			Help:      "Subscriptions refused because the subscriber limit was reached.",
		}),
	}

	reg.MustRegister(m.Subscribers, m.EventsPublished, m.MessagesDelivered, m.Evictions, m.Rejected)
	return m
}
