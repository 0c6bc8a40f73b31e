package server

import "github.com/prometheus/client_golang/prometheus"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsql_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "obsql_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	generateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsql_generate_requests_total",
			Help: "Generate requests by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	generateStreamBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsql_generate_stream_bytes_total",
			Help: "Bytes of generated text streamed to clients.",
		},
		[]string{"provider"},
	)

	generateFirstDeltaSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "obsql_generate_first_delta_seconds",
			Help:    "Time from request to the first streamed text.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"provider"},
	)

	generateInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obsql_generate_inflight",
			Help: "Generate streams currently open.",
		},
	)
)

const (
	outcomeOK          = "ok"
	outcomeBadRequest  = "bad_request"
	outcomeTooLarge    = "too_large"
	outcomeUpstream    = "upstream_error"
	outcomeStreamError = "stream_error"
	outcomeClientGone  = "client_gone"
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		generateRequestsTotal,
		generateStreamBytesTotal,
		generateFirstDeltaSeconds,
		generateInflight,
	)
}
