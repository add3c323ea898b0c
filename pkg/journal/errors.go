package journal

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferFull is returned by Recorder.Record when the write buffer is full.
	ErrBufferFull = errors.New("journal buffer full")

	// ErrRecorderClosed is returned by Recorder.Record after Close.
	ErrRecorderClosed = errors.New("journal recorder closed")
)

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // "memory" or "sqlite"
	Operation string // "store", "query", "delete", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("journal storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// QueryError represents an invalid query.
type QueryError struct {
	Query *Query
	Cause error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("journal query error: %v", e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// RecorderError represents a record that could not be queued.
type RecorderError struct {
	RecordID string
	Cause    error
}

// Error implements the error interface.
func (e *RecorderError) Error() string {
	return fmt.Sprintf("journal record %s not queued: %v", e.RecordID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecorderError) Unwrap() error {
	return e.Cause
}

// RetentionError represents a failed pruning run.
type RetentionError struct {
	Days  int
	Cause error
}

// Error implements the error interface.
func (e *RetentionError) Error() string {
	return fmt.Sprintf("journal retention error [days=%d]: %v", e.Days, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RetentionError) Unwrap() error {
	return e.Cause
}

// ExportError represents a failed export.
type ExportError struct {
	Format string
	Count  int // records written before the failure
	Cause  error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("journal export error [format=%s, records=%d]: %v", e.Format, e.Count, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExportError) Unwrap() error {
	return e.Cause
}
