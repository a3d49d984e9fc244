package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoutingDecisions counts routing decisions by category and provider.
	RoutingDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "router",
		Name:      "decisions_total",
		Help:      "Routing decisions by query category and chosen provider.",
	}, []string{"category", "provider"})

	// ProviderRequests counts provider calls by provider and outcome.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Provider generation attempts by provider and outcome.",
	}, []string{"provider", "outcome"})

	// ProviderLatency observes provider call latency.
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sage",
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Provider generation latency in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"provider"})

	// Fallbacks counts how often the router had to leave its primary choice.
	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "router",
		Name:      "fallbacks_total",
		Help:      "Fallback attempts by original and substitute provider.",
	}, []string{"from", "to"})

	// ProviderHealthy reports the monitor's current view per provider.
	ProviderHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sage",
		Subsystem: "provider",
		Name:      "healthy",
		Help:      "Whether the health monitor considers a provider healthy.",
	}, []string{"provider"})

	// LearningEvents counts recorded learning events by type.
	LearningEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "learning",
		Name:      "events_total",
		Help:      "Learning events recorded, by event type.",
	}, []string{"type"})

	// HTTPRequests counts API requests by route, method and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes API request latency by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sage",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)
