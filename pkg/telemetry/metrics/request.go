package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks inbound requests.
//
// Metrics:
//   - connect_requests_total: request count by method, kind and status
//   - connect_request_duration_seconds: request duration histogram
//   - connect_response_size_bytes: bytes written to the caller
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sizeBytes       *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(opts metricOptions, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: opts.namespace,
				Name:      "requests_total",
				Help:      "Total number of inbound requests",
			},
			[]string{"method", "kind", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: opts.namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of inbound requests in seconds",
				Buckets:   opts.buckets,
			},
			[]string{"method", "kind"},
		),

		sizeBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: opts.namespace,
				Name:      "response_size_bytes",
				Help:      "Size of responses written to callers in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.sizeBytes,
	)

	return rm
}

// RecordRequest records a completed request.
func (rm *RequestMetrics) RecordRequest(method, kind, status string, duration time.Duration, bytes int64) {
	rm.requestsTotal.WithLabelValues(method, kind, status).Inc()
	rm.requestDuration.WithLabelValues(method, kind).Observe(duration.Seconds())
	if bytes > 0 {
		rm.sizeBytes.WithLabelValues(kind).Observe(float64(bytes))
	}
}
