package config

import "time"

// Config is the root configuration structure for connect.
// It contains all configuration sections for the inbound server, the upstream
// API, paging behavior, telemetry and the request journal.
type Config struct {
	// Server contains inbound HTTP server configuration including listen
	// address and timeouts.
	Server ServerConfig `yaml:"server"`

	// Upstream contains the single upstream API this instance proxies,
	// including its credential pair.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Paging contains configuration for the pagination streamer.
	Paging PagingConfig `yaml:"paging"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Journal contains configuration for the per-request journal.
	Journal JournalConfig `yaml:"journal"`
}

// ServerConfig contains configuration for the inbound HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". When empty it is derived from Port.
	// Default: "0.0.0.0:5000"
	ListenAddress string `yaml:"listen_address"`

	// Port is the listen port used when ListenAddress is not set.
	// Default: 5000
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Streamed listings can take as long as the upstream pagination,
	// so zero (no timeout) is the default.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight requests
	// during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// UpstreamConfig contains configuration for the upstream API.
type UpstreamConfig struct {
	// BaseURL is the base URL of the upstream API. Required.
	// Example: "https://connect.example.com/v1"
	BaseURL string `yaml:"base_url"`

	// Username is the account used against the authentication endpoint. Required.
	Username string `yaml:"username"`

	// Password is the password for Username. Required.
	Password string `yaml:"password"`

	// AuthenticatePath is the path of the token endpoint relative to BaseURL.
	// Default: "/authenticate"
	AuthenticatePath string `yaml:"authenticate_path"`

	// Timeout bounds a single upstream call (one page, or one forwarded
	// request). Zero disables the client timeout.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// HTTP2 enables HTTP/2 on the upstream transport.
	// Default: false
	HTTP2 bool `yaml:"http2"`

	// MaxIdleConns is the size of the idle connection pool.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout is how long idle upstream connections are kept.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// TokenRefreshSchedule is an optional cron expression that forces a token
	// renewal in the background (e.g. "@every 50m"). Empty disables it.
	TokenRefreshSchedule string `yaml:"token_refresh_schedule"`
}

// PagingConfig contains configuration for streamed GET listings.
type PagingConfig struct {
	// DefaultPageSize is sent upstream when the caller supplied no page size.
	// Default: 100
	DefaultPageSize int `yaml:"default_page_size"`

	// PageParam is the upstream query parameter carrying the page cursor.
	// Default: "page"
	PageParam string `yaml:"page_param"`

	// PageSizeParam is the upstream query parameter carrying the page size.
	// Default: "pageSize"
	PageSizeParam string `yaml:"page_size_param"`

	// DataProperty is the envelope property holding the entity collection
	// when the caller does not pass ms_data_property.
	// Default: "data"
	DataProperty string `yaml:"data_property"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// Redact enables masking of credentials in log attributes.
	// Default: true
	Redact *bool `yaml:"redact"`
}

// RedactEnabled reports whether credential redaction is enabled.
func (l LoggingConfig) RedactEnabled() bool {
	return l.Redact == nil || *l.Redact
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the Prometheus namespace for all metrics.
	// Default: "connect"
	Namespace string `yaml:"namespace"`

	// DurationBuckets are the histogram buckets for request and upstream
	// call durations in seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// IsEnabled reports whether metrics are enabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TracingConfig contains configuration for OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint (host:port).
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds span export calls.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// SampleRatio is the fraction of traces sampled (0.0 - 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "connect"
	ServiceName string `yaml:"service_name"`
}

// JournalConfig contains configuration for the request journal.
type JournalConfig struct {
	// Enabled controls whether request records are written.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// BufferSize is the size of the asynchronous write buffer. Records are
	// dropped (and counted) when the buffer is full.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// Retention contains pruning configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains configuration for the SQLite journal backend.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/journal.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long writers wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`
}

// WALEnabled reports whether WAL mode is enabled.
func (s SQLiteConfig) WALEnabled() bool {
	return s.WALMode == nil || *s.WALMode
}

// RetentionConfig contains journal retention configuration.
type RetentionConfig struct {
	// Days is how long records are kept.
	// Default: 30
	Days int `yaml:"days"`

	// PruneSchedule is the cron expression for pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}
