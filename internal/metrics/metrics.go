package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RouteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navigation_route_requests_total",
			Help: "Routing service calls by outcome",
		},
		[]string{"outcome"},
	)

	RerouteSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navigation_reroute_suppressed_total",
			Help: "Position updates that did not trigger a route request",
		},
		[]string{"reason"},
	)

	RouteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "navigation_route_duration_seconds",
			Help:    "Duration of routing service calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	NavigationSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navigation_sessions_active",
			Help: "Open navigation sessions",
		},
	)

	OutletFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outlet_fetches_total",
			Help: "Assigned/captured outlet fetches by result",
		},
		[]string{"result"},
	)

	ProductFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_fetches_total",
			Help: "Product catalog fetches by result",
		},
		[]string{"result"},
	)
)
