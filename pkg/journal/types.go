package journal

import (
	"context"
	"time"
)

// Record kinds.
const (
	// KindStream is a GET answered by the pagination streamer.
	KindStream = "stream"

	// KindForward is a non-GET relayed to the upstream once.
	KindForward = "forward"
)

// Record describes one inbound request handled by the proxy.
type Record struct {
	// ID uniquely identifies the record (UUID v4).
	ID string `json:"id"`

	// RequestID correlates the record with logs and the X-Request-ID header.
	RequestID string `json:"request_id"`

	// Timestamp is when the request arrived.
	Timestamp time.Time `json:"timestamp"`

	Method string `json:"method"`
	Path   string `json:"path"`
	Kind   string `json:"kind"`

	// Status is the HTTP status sent to the caller.
	Status int `json:"status"`

	// Pages is the number of upstream pages fetched (streams only).
	Pages int `json:"pages"`

	// Entities is the number of array elements emitted (streams only).
	Entities int `json:"entities"`

	// Bytes is the response body size written to the caller.
	Bytes int64 `json:"bytes"`

	// Renewals counts upstream calls retried after a token renewal.
	Renewals int `json:"renewals"`

	// Duration is the total handling time.
	Duration time.Duration `json:"duration"`

	// Truncated is set when a committed stream ended without its closing bracket.
	Truncated bool `json:"truncated,omitempty"`

	// Error is the failure text, empty on success.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the request did not complete successfully.
func (r *Record) Failed() bool {
	return r.Error != "" || r.Truncated || r.Status >= 400
}

// Query filters journal records. Zero-valued fields do not filter.
type Query struct {
	// Since and Until bound Timestamp (inclusive).
	Since *time.Time
	Until *time.Time

	// Method matches exactly.
	Method string

	// PathPrefix matches the start of Path.
	PathPrefix string

	// Kind matches exactly.
	Kind string

	// MinStatus keeps records whose Status is at least this value.
	MinStatus int

	// Limit caps the result size. 0 means no limit.
	Limit int

	// Offset skips records after ordering.
	Offset int
}

// Storage persists journal records. Query and QueryStream return records
// newest first.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns records matching query.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// QueryStream returns matching records over a channel. Both channels are
	// closed when the query completes; at most one error is sent.
	QueryStream(ctx context.Context, query *Query) (<-chan *Record, <-chan error, error)

	// Count returns the number of matching records, ignoring Limit and Offset.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes matching records and returns how many were removed.
	// Limit and Offset are ignored.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases the backend.
	Close() error
}
