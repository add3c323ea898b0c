package metrics

import "github.com/prometheus/client_golang/prometheus"

// PagingMetrics tracks the pagination streamer.
//
// Metrics:
//   - connect_pages_fetched_total: upstream pages consumed
//   - connect_entities_streamed_total: entities written to callers
//   - connect_stream_pages: pages per streamed listing
//   - connect_streams_total: finished listings by outcome
type PagingMetrics struct {
	pages       prometheus.Counter
	entities    prometheus.Counter
	streamPages prometheus.Histogram
	streams     *prometheus.CounterVec
}

// NewPagingMetrics creates and registers paging metrics with the provided registry.
func NewPagingMetrics(opts metricOptions, registry *prometheus.Registry) *PagingMetrics {
	pm := &PagingMetrics{
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of upstream pages consumed by streamed listings",
		}),
		entities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.namespace,
			Name:      "entities_streamed_total",
			Help:      "Total number of entities written to callers",
		}),
		streamPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: opts.namespace,
			Name:      "stream_pages",
			Help:      "Number of upstream pages per streamed listing",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048
		}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.namespace,
			Name:      "streams_total",
			Help:      "Total number of streamed listings by outcome",
		}, []string{"outcome"}),
	}

	registry.MustRegister(pm.pages, pm.entities, pm.streamPages, pm.streams)

	return pm
}

// RecordPage records one page and the entities it contributed.
func (pm *PagingMetrics) RecordPage(entities int) {
	pm.pages.Inc()
	if entities > 0 {
		pm.entities.Add(float64(entities))
	}
}

// RecordStream records a finished listing. Outcome is "complete",
// "failed" or "cancelled".
func (pm *PagingMetrics) RecordStream(pages int, outcome string) {
	pm.streamPages.Observe(float64(pages))
	pm.streams.WithLabelValues(outcome).Inc()
}
