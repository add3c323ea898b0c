package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks calls to the upstream API and the token lifecycle.
//
// Metrics:
//   - connect_upstream_calls_total: upstream calls by method and status
//   - connect_upstream_call_duration_seconds: upstream call latency
//   - connect_token_renewals_total: authentication calls by result
//   - connect_token_issued_timestamp_seconds: issue time of the held token
//   - connect_token_expiry_timestamp_seconds: JWT expiry of the held token (0 if unknown)
type UpstreamMetrics struct {
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	renewals *prometheus.CounterVec
	issued   prometheus.Gauge
	expiry   prometheus.Gauge
}

// NewUpstreamMetrics creates and registers upstream metrics with the provided registry.
func NewUpstreamMetrics(opts metricOptions, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: opts.namespace,
				Name:      "upstream_calls_total",
				Help:      "Total number of upstream API calls",
			},
			[]string{"method", "status"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: opts.namespace,
				Name:      "upstream_call_duration_seconds",
				Help:      "Upstream API call latency in seconds",
				Buckets:   opts.buckets,
			},
			[]string{"method"},
		),

		renewals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: opts.namespace,
				Name:      "token_renewals_total",
				Help:      "Total number of authentication calls by result",
			},
			[]string{"result"},
		),

		issued: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: opts.namespace,
				Name:      "token_issued_timestamp_seconds",
				Help:      "Unix time at which the held bearer token was obtained",
			},
		),

		expiry: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: opts.namespace,
				Name:      "token_expiry_timestamp_seconds",
				Help:      "Unix expiry of the held bearer token when it is a JWT, 0 otherwise",
			},
		),
	}

	registry.MustRegister(
		um.calls,
		um.latency,
		um.renewals,
		um.issued,
		um.expiry,
	)

	return um
}

// RecordCall records one upstream call.
func (um *UpstreamMetrics) RecordCall(method, status string, duration time.Duration) {
	um.calls.WithLabelValues(method, status).Inc()
	um.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRenewal records an authentication attempt.
func (um *UpstreamMetrics) RecordRenewal(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	um.renewals.WithLabelValues(result).Inc()
}

// SetTokenTimes updates the token timestamp gauges.
func (um *UpstreamMetrics) SetTokenTimes(issuedAt, expiresAt time.Time) {
	um.issued.Set(unixSeconds(issuedAt))
	um.expiry.Set(unixSeconds(expiresAt))
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}
