package metrics

import "github.com/prometheus/client_golang/prometheus"

// JournalMetrics tracks the request journal.
//
// Metrics:
//   - connect_journal_writes_total: records persisted by result
//   - connect_journal_dropped_total: records dropped on a full buffer
//   - connect_journal_pruned_total: records removed by retention
type JournalMetrics struct {
	writes  *prometheus.CounterVec
	dropped prometheus.Counter
	pruned  prometheus.Counter
}

// NewJournalMetrics creates and registers journal metrics with the provided registry.
func NewJournalMetrics(opts metricOptions, registry *prometheus.Registry) *JournalMetrics {
	jm := &JournalMetrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.namespace,
			Name:      "journal_writes_total",
			Help:      "Total number of journal records written by result",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.namespace,
			Name:      "journal_dropped_total",
			Help:      "Total number of journal records dropped because the buffer was full",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.namespace,
			Name:      "journal_pruned_total",
			Help:      "Total number of journal records removed by retention",
		}),
	}

	registry.MustRegister(jm.writes, jm.dropped, jm.pruned)

	return jm
}

// RecordWrite records one write attempt.
func (jm *JournalMetrics) RecordWrite(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	jm.writes.WithLabelValues(result).Inc()
}

// RecordDrop records one dropped record.
func (jm *JournalMetrics) RecordDrop() {
	jm.dropped.Inc()
}

// RecordPrune records a retention run.
func (jm *JournalMetrics) RecordPrune(deleted int64) {
	if deleted > 0 {
		jm.pruned.Add(float64(deleted))
	}
}
