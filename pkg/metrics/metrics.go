package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloglite_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bloglite_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloglite_cache_requests_total",
			Help: "Aggregate cache lookups by operation and result (hit, miss, error)",
		},
		[]string{"op", "result"},
	)

	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloglite_cache_invalidations_total",
			Help: "Aggregate cache invalidations by operation",
		},
		[]string{"op"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloglite_events_published_total",
			Help: "Domain events handed to the event bus",
		},
		[]string{"type", "result"},
	)

	DigestUsersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloglite_digest_users_total",
			Help: "Users processed by digest jobs by kind and result (sent, failed)",
		},
		[]string{"kind", "result"},
	)

	DigestRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bloglite_digest_run_duration_seconds",
			Help:    "Digest job duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"kind"},
	)
)
