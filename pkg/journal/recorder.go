package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Metrics receives journal write observations. metrics.Collector implements it.
type Metrics interface {
	RecordJournalWrite(success bool)
	RecordJournalDrop()
}

type noopMetrics struct{}

func (noopMetrics) RecordJournalWrite(bool) {}
func (noopMetrics) RecordJournalDrop()      {}

// RecorderConfig contains configuration for a Recorder.
type RecorderConfig struct {
	// Storage receives the records.
	Storage Storage

	// BufferSize is the capacity of the write buffer.
	// Default: 1000
	BufferSize int

	// WriteTimeout bounds each Store call.
	// Default: 5 seconds
	WriteTimeout time.Duration

	Logger  *slog.Logger
	Metrics Metrics
}

// Recorder writes journal records asynchronously so request handling never
// waits on storage.
type Recorder struct {
	storage      Storage
	writeTimeout time.Duration
	records      chan *Record
	done         chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
	metrics      Metrics

	mu     sync.RWMutex
	closed bool
}

// NewRecorder creates a Recorder and starts its background writer.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	r := &Recorder{
		storage:      cfg.Storage,
		writeTimeout: cfg.WriteTimeout,
		records:      make(chan *Record, cfg.BufferSize),
		done:         make(chan struct{}),
		logger:       logger.With("component", "journal.recorder"),
		metrics:      metrics,
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("journal recorder initialized",
		"buffer_size", cfg.BufferSize,
		"write_timeout", cfg.WriteTimeout,
	)

	return r
}

// Record queues a record for writing. It assigns an ID and timestamp when
// missing and never blocks: a full buffer drops the record and returns a
// *RecorderError wrapping ErrBufferFull.
func (r *Recorder) Record(record *Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return &RecorderError{RecordID: record.ID, Cause: ErrRecorderClosed}
	}

	select {
	case r.records <- record:
		return nil
	default:
		r.metrics.RecordJournalDrop()
		r.logger.Warn("journal buffer full, dropping record",
			"record_id", record.ID,
			"request_id", record.RequestID,
			"capacity", cap(r.records),
		)
		return &RecorderError{RecordID: record.ID, Cause: ErrBufferFull}
	}
}

// Pending returns the number of queued records.
func (r *Recorder) Pending() int {
	return len(r.records)
}

// Close stops accepting records, writes everything already queued and
// returns once the writer has exited.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("journal recorder closed")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.records:
			r.write(record)
		case <-r.done:
			r.logger.Debug("draining journal buffer", "pending", len(r.records))
			for {
				select {
				case record := <-r.records:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.metrics.RecordJournalWrite(false)
		r.logger.Error("failed to store journal record",
			"record_id", record.ID,
			"request_id", record.RequestID,
			"error", err,
		)
		return
	}
	r.metrics.RecordJournalWrite(true)

	if d := time.Since(start); d > r.writeTimeout/2 {
		r.logger.Warn("slow journal write",
			"record_id", record.ID,
			"duration_ms", d.Milliseconds(),
		)
	}
}
