// Package metrics holds the Prometheus collectors shared by the
// forwarding pipeline, strategy engine, and health supervisor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts forwarded requests by outcome.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lb_http_requests_total",
			Help: "Total number of proxied HTTP requests.",
		},
		[]string{"backend", "method", "code"},
	)

	// HTTPRequestDurationSeconds measures end-to-end forwarding latency.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lb_http_request_duration_seconds",
			Help:    "Duration of proxied HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "method", "code"},
	)

	// ActiveConnections tracks in-flight forwards per backend.
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lb_active_connections",
			Help: "Number of in-flight forwarded requests per backend.",
		},
		[]string{"backend"},
	)

	// BackendStatus mirrors registry.Status as a gauge for dashboards.
	BackendStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lb_backend_status",
			Help: "Current backend status (0=Alive, 1=Busy, 2=Dead, 3=Throttled).",
		},
		[]string{"backend"},
	)

	// HealthProbesTotal counts health-check outcomes per backend.
	HealthProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lb_health_probes_total",
			Help: "Total number of health probes performed, by outcome.",
		},
		[]string{"backend", "outcome"},
	)

	// StrategySelectionsTotal counts backend selections per strategy.
	StrategySelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lb_strategy_selections_total",
			Help: "Total number of backend selections, by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	// NoBackendTotal counts requests that found no eligible backend.
	NoBackendTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lb_no_backend_total",
			Help: "Total number of requests for which no alive backend was available.",
		},
	)
)
