package metrics

import (
	"strconv"
	"time"

	"mercator-hq/connect/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector is the main orchestrator for all Prometheus metrics in connect.
// It owns a private registry and implements the recorder interfaces of the
// upstream, proxy and journal packages, so a single instance is threaded
// through the whole service.
//
// A Collector built from a disabled configuration registers nothing and
// every Record call returns immediately.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	requestMetrics  *RequestMetrics
	upstreamMetrics *UpstreamMetrics
	pagingMetrics   *PagingMetrics
	journalMetrics  *JournalMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created and
// the Go runtime and process collectors are added to it.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	c := &Collector{enabled: cfg == nil || cfg.IsEnabled()}

	if registry == nil {
		registry = prometheus.NewRegistry()
		if c.enabled {
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
	}
	c.registry = registry

	if !c.enabled {
		return c
	}

	opts := metricOptions{namespace: config.DefaultMetricsNamespace, buckets: config.DefaultDurationBuckets}
	if cfg != nil {
		if cfg.Namespace != "" {
			opts.namespace = cfg.Namespace
		}
		if len(cfg.DurationBuckets) > 0 {
			opts.buckets = cfg.DurationBuckets
		}
	}

	c.requestMetrics = NewRequestMetrics(opts, registry)
	c.upstreamMetrics = NewUpstreamMetrics(opts, registry)
	c.pagingMetrics = NewPagingMetrics(opts, registry)
	c.journalMetrics = NewJournalMetrics(opts, registry)

	return c
}

// metricOptions carries the settings shared by every metric family.
type metricOptions struct {
	namespace string
	buckets   []float64
}

// Enabled reports whether metrics are being recorded.
func (c *Collector) Enabled() bool {
	return c.enabled
}

// RecordRequest records a completed inbound request.
//
// Parameters:
//   - method: inbound HTTP method
//   - kind: "stream" for paginated GETs, "forward" for everything else
//   - status: HTTP status sent to the caller
//   - duration: time from first byte in to last byte out
//   - bytes: response bytes written
func (c *Collector) RecordRequest(method, kind string, status int, duration time.Duration, bytes int64) {
	if !c.enabled {
		return
	}
	c.requestMetrics.RecordRequest(method, kind, statusLabel(status), duration, bytes)
}

// RecordUpstreamCall records one upstream HTTP call. A status of zero means
// the call failed before a response arrived.
func (c *Collector) RecordUpstreamCall(method string, status int, duration time.Duration) {
	if !c.enabled {
		return
	}
	c.upstreamMetrics.RecordCall(method, statusLabel(status), duration)
}

// RecordTokenRenewal records the outcome of an authentication call.
func (c *Collector) RecordTokenRenewal(success bool) {
	if !c.enabled {
		return
	}
	c.upstreamMetrics.RecordRenewal(success)
}

// SetTokenTimes exports the issue time and, when known, the expiry of the
// held token as Unix timestamps.
func (c *Collector) SetTokenTimes(issuedAt, expiresAt time.Time) {
	if !c.enabled {
		return
	}
	c.upstreamMetrics.SetTokenTimes(issuedAt, expiresAt)
}

// RecordPage records one upstream page consumed by the streamer.
func (c *Collector) RecordPage(entities int) {
	if !c.enabled {
		return
	}
	c.pagingMetrics.RecordPage(entities)
}

// RecordStream records the end of a streamed listing.
func (c *Collector) RecordStream(pages int, outcome string) {
	if !c.enabled {
		return
	}
	c.pagingMetrics.RecordStream(pages, outcome)
}

// RecordJournalWrite records a persisted (or failed) journal record.
func (c *Collector) RecordJournalWrite(success bool) {
	if !c.enabled {
		return
	}
	c.journalMetrics.RecordWrite(success)
}

// RecordJournalDrop records a journal record dropped because the buffer was full.
func (c *Collector) RecordJournalDrop() {
	if !c.enabled {
		return
	}
	c.journalMetrics.RecordDrop()
}

// RecordJournalPrune records the number of records removed by retention.
func (c *Collector) RecordJournalPrune(deleted int64) {
	if !c.enabled {
		return
	}
	c.journalMetrics.RecordPrune(deleted)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// statusLabel renders an HTTP status as a label value; zero becomes "error".
func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
