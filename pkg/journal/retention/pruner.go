package retention

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/connect/pkg/config"
	"mercator-hq/connect/pkg/journal"
)

// Metrics receives pruning observations. metrics.Collector implements it.
type Metrics interface {
	RecordJournalPrune(deleted int64)
}

type noopMetrics struct{}

func (noopMetrics) RecordJournalPrune(int64) {}

// Pruner deletes journal records older than the retention period.
type Pruner struct {
	storage   journal.Storage
	config    config.RetentionConfig
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
	scheduler *Scheduler
}

// NewPruner creates a Pruner. A nil metrics disables pruning metrics.
func NewPruner(storage journal.Storage, cfg config.RetentionConfig, metrics Metrics) *Pruner {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	p := &Pruner{
		storage: storage,
		config:  cfg,
		metrics: metrics,
		logger:  slog.Default().With("component", "journal.retention"),
		now:     time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Cutoff returns the instant before which records are deleted.
func (p *Pruner) Cutoff() time.Time {
	return p.now().AddDate(0, 0, -p.config.Days)
}

// Prune deletes records older than the retention period and returns how
// many were removed. A non-positive Days keeps records forever.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.Days <= 0 {
		p.logger.Debug("retention disabled, nothing pruned")
		return 0, nil
	}

	cutoff := p.Cutoff()
	deleted, err := p.storage.Delete(ctx, &journal.Query{Until: &cutoff})
	if err != nil {
		return 0, &journal.RetentionError{Days: p.config.Days, Cause: err}
	}
	p.metrics.RecordJournalPrune(deleted)

	if deleted > 0 {
		p.logger.Info("journal pruned",
			"deleted_count", deleted,
			"retention_days", p.config.Days,
			"cutoff", cutoff,
		)
	} else {
		p.logger.Debug("no journal records pruned", "retention_days", p.config.Days)
	}

	return deleted, nil
}

// Start begins scheduled pruning.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled run, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
