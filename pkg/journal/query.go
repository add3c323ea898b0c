package journal

import (
	"fmt"
	"strings"
)

const (
	// DefaultLimit is applied by ApplyQueryDefaults when Limit is 0.
	DefaultLimit = 100

	// MaxLimit is the largest Limit Validate accepts.
	MaxLimit = 10000
)

// Validate returns a *QueryError if any filter is out of range.
func (q *Query) Validate() error {
	switch {
	case q.Limit < 0:
		return &QueryError{Query: q, Cause: fmt.Errorf("limit must be >= 0, got %d", q.Limit)}
	case q.Limit > MaxLimit:
		return &QueryError{Query: q, Cause: fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit)}
	case q.Offset < 0:
		return &QueryError{Query: q, Cause: fmt.Errorf("offset must be >= 0, got %d", q.Offset)}
	case q.MinStatus < 0 || q.MinStatus > 599:
		return &QueryError{Query: q, Cause: fmt.Errorf("min status must be between 0 and 599, got %d", q.MinStatus)}
	case q.Since != nil && q.Until != nil && q.Since.After(*q.Until):
		return &QueryError{Query: q, Cause: fmt.Errorf("since must not be after until")}
	case q.Kind != "" && q.Kind != KindStream && q.Kind != KindForward:
		return &QueryError{Query: q, Cause: fmt.Errorf("invalid kind %q (must be %q or %q)", q.Kind, KindStream, KindForward)}
	}
	return nil
}

// ApplyQueryDefaults fills the default limit and normalizes the method.
func ApplyQueryDefaults(q *Query) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	q.Method = strings.ToUpper(q.Method)
}

// Matches reports whether r satisfies the filters of q.
func (q *Query) Matches(r *Record) bool {
	if q.Since != nil && r.Timestamp.Before(*q.Since) {
		return false
	}
	if q.Until != nil && r.Timestamp.After(*q.Until) {
		return false
	}
	if q.Method != "" && r.Method != q.Method {
		return false
	}
	if q.PathPrefix != "" && !strings.HasPrefix(r.Path, q.PathPrefix) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.MinStatus > 0 && r.Status < q.MinStatus {
		return false
	}
	return true
}
