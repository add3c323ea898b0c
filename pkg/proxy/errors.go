package proxy

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError is a non-2xx upstream response that ended a streamed
// listing. Forwarded non-GET calls relay such responses instead.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream responded with status %d: %s", e.StatusCode, truncateBody(e.Body))
}

// RequestError reports an inbound request the proxy could not forward.
type RequestError struct {
	Message string
	Param   string
	Cause   error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain support.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// StatusFor maps an error to the HTTP status reported to the caller. Only
// upstream rejections keep their status; authentication, transport and
// request failures are internal faults.
func StatusFor(err error) int {
	var upErr *UpstreamError
	if errors.As(err, &upErr) && upErr.StatusCode > 0 {
		return upErr.StatusCode
	}
	return http.StatusInternalServerError
}

func truncateBody(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
