package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts HTTP calls to external APIs by outcome
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tools_upstream_requests_total",
			Help: "Total number of requests sent to upstream APIs",
		},
		[]string{"upstream", "method", "code"},
	)

	// UpstreamLatency tracks upstream call latency
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_tools_upstream_latency_seconds",
			Help:    "Upstream API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream", "method"},
	)

	// ToolInvocations counts tool calls by tool name and envelope status
	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tools_tool_invocations_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "status"},
	)

	// BridgeOutcomes counts orchestrated bridge executions by final status
	BridgeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tools_bridge_outcomes_total",
			Help: "Total number of bridge executions by outcome",
		},
		[]string{"status", "kind"},
	)

	// PollAttempts observes how many status polls a bridge needed
	PollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_tools_swap_poll_attempts",
			Help:    "Number of swap status polls per bridge execution",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
		},
	)
)
