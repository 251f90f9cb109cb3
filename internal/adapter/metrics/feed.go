package metrics

import "github.com/prometheus/client_golang/prometheus"

// FeedMetrics holds Prometheus metrics for upstream refresh cycles.
type FeedMetrics struct {
	FetchDuration       *prometheus.HistogramVec
	FetchErrors         *prometheus.CounterVec
	ConsecutiveFailures *prometheus.GaugeVec
	SkippedTicks        *prometheus.CounterVec
	ChangeEvents        *prometheus.CounterVec
	SnapshotVersion     *prometheus.GaugeVec
	Entities            *prometheus.GaugeVec
}

// NewFeedMetrics creates and registers feed refresh metrics on the given registry.
func NewFeedMetrics(reg prometheus.Registerer) *FeedMetrics {
	m := &FeedMetrics{
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream feed fetches in seconds, by feed and result.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"feed", "result"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed feed fetches, by feed and kind.",
		}, []string{"feed", "kind"}),
		ConsecutiveFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "consecutive_failures",
			Help:      "Number of refresh failures since the last success.",
		}, []string{"feed"}),
		SkippedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "skipped_ticks_total",
			Help:      "Ticks skipped because the previous refresh was still running.",
		}, []string{"feed"}),
		ChangeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "change_events_total",
			Help:      "Total number of change events published.",
		}, []string{"feed"}),
		SnapshotVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "snapshot_version",
			Help:      "Version of the committed snapshot.",
		}, []string{"feed"}),
		Entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "entities",
			Help:      "Number of entities in the committed snapshot.",
		}, []string{"feed"}),
	}

	reg.MustRegister(m.FetchDuration, m.FetchErrors, m.ConsecutiveFailures, m.SkippedTicks,
		m.ChangeEvents, m.SnapshotVersion, m.Entities)
	return m
}
