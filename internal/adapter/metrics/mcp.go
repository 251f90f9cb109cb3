package metrics

import "github.com/prometheus/client_golang/prometheus"

// MCPMetrics holds Prometheus metrics for the MCP tool and notification surface.
type MCPMetrics struct {
	ToolCalls       *prometheus.CounterVec
	ToolDuration    *prometheus.HistogramVec
	ActiveStreams   prometheus.Gauge
	SessionsEvicted prometheus.Counter
}

// NewMCPMetrics creates and registers MCP metrics on the given registry.
func NewMCPMetrics(reg prometheus.Registerer) *MCPMetrics {
	m := &MCPMetrics{
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls, by tool and outcome (ok, tool_error, error).",
		}, []string{"tool", "outcome"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool calls in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"tool"}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "active_streams",
			Help:      "Number of open session event streams, each holding one hub subscription.",
		}),
		SessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "sessions_evicted_total",
			Help:      "Sessions closed because they fell behind the change stream.",
		}),
	}

	reg.MustRegister(m.ToolCalls, m.ToolDuration, m.ActiveStreams, m.SessionsEvicted)
	return m
}
