package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cms_api_requests_total",
		Help: "Backend requests issued by the console, partitioned by method and status.",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cms_api_request_duration_seconds",
		Help:    "Latency of backend requests that produced a response.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	sessionInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cms_api_session_invalidations_total",
		Help: "Times the stored credential was purged after an invalid-session 401.",
	})
)
