package upstream

import "fmt"

// AuthenticationError reports a failed token acquisition: the authentication
// endpoint was unreachable, answered with a non-2xx status, or returned a
// body without a usable token.
type AuthenticationError struct {
	// URL is the authentication endpoint.
	URL string

	// StatusCode is the HTTP status returned (0 if no response was received).
	StatusCode int

	// Message describes the failure.
	Message string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("authentication against %s failed (status %d): %s", e.URL, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("authentication against %s failed: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("authentication against %s failed: %s", e.URL, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// TransportError reports an upstream call that produced no HTTP response:
// connection refused, DNS failure, TLS failure, timeout or cancellation.
// Transport errors are never retried.
type TransportError struct {
	// Method is the HTTP method of the failed call.
	Method string

	// URL is the upstream URL of the failed call.
	URL string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s %s failed: %v", e.Method, e.URL, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}
