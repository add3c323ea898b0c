package config

import (
	"fmt"
	"time"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultPort            = 5000
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Upstream defaults
	DefaultAuthenticatePath = "/authenticate"
	DefaultUpstreamTimeout  = 60 * time.Second
	DefaultMaxIdleConns     = 100
	DefaultIdleConnTimeout  = 90 * time.Second

	// Paging defaults
	DefaultPageSize      = 100
	DefaultPageParam     = "page"
	DefaultPageSizeParam = "pageSize"
	DefaultDataProperty  = "data"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "connect"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "connect"

	// Journal defaults
	DefaultJournalBackend       = "sqlite"
	DefaultJournalSQLitePath    = "data/journal.db"
	DefaultJournalBusyTimeout   = 5 * time.Second
	DefaultJournalBufferSize    = 1000
	DefaultJournalRetentionDays = 30
	DefaultJournalPruneSchedule = "0 3 * * *"
)

// DefaultDurationBuckets are the histogram buckets for durations in seconds,
// spanning single pages (tens of ms) up to long multi-page listings.
var DefaultDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Upstream defaults
	if cfg.Upstream.AuthenticatePath == "" {
		cfg.Upstream.AuthenticatePath = DefaultAuthenticatePath
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultIdleConnTimeout
	}

	ApplyPagingDefaults(&cfg.Paging)

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}

	// Journal defaults
	if cfg.Journal.Backend == "" {
		cfg.Journal.Backend = DefaultJournalBackend
	}
	if cfg.Journal.SQLite.Path == "" {
		cfg.Journal.SQLite.Path = DefaultJournalSQLitePath
	}
	if cfg.Journal.SQLite.BusyTimeout == 0 {
		cfg.Journal.SQLite.BusyTimeout = DefaultJournalBusyTimeout
	}
	if cfg.Journal.BufferSize == 0 {
		cfg.Journal.BufferSize = DefaultJournalBufferSize
	}
	if cfg.Journal.Retention.Days == 0 {
		cfg.Journal.Retention.Days = DefaultJournalRetentionDays
	}
	if cfg.Journal.Retention.PruneSchedule == "" {
		cfg.Journal.Retention.PruneSchedule = DefaultJournalPruneSchedule
	}
}

// ApplyPagingDefaults fills the zero fields of a paging section.
func ApplyPagingDefaults(cfg *PagingConfig) {
	if cfg.DefaultPageSize == 0 {
		cfg.DefaultPageSize = DefaultPageSize
	}
	if cfg.PageParam == "" {
		cfg.PageParam = DefaultPageParam
	}
	if cfg.PageSizeParam == "" {
		cfg.PageSizeParam = DefaultPageSizeParam
	}
	if cfg.DataProperty == "" {
		cfg.DataProperty = DefaultDataProperty
	}
}
