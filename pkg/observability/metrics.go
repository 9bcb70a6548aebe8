package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsInflight = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "wayfarer", Name: "requests_inflight", Help: "Requests currently pending in the registry"})

	RequestsIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "wayfarer", Name: "requests_issued_total", Help: "Requests issued to the routing engine"},
		[]string{"kind"},
	)
	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "wayfarer", Name: "completions_total", Help: "Completion deliveries by outcome"},
		[]string{"kind", "outcome"},
	)
	CancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "wayfarer", Name: "cancellations_total", Help: "Requests cancelled before completion"})

	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wayfarer",
			Name:      "completion_latency_seconds",
			Help:      "Time from request issue to completion delivery",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "wayfarer", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wayfarer",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
