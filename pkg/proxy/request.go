package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// MaxRequestBodySize is the maximum accepted request body (10MB).
	MaxRequestBodySize = 10 * 1024 * 1024

	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"
)

// ReadBody reads the JSON body of a forwarded call. An empty body yields nil
// for every method. A body that is too large or not valid JSON is a
// *RequestError.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, &RequestError{Message: "failed to read request body", Param: "body", Cause: err}
	}
	if len(body) > MaxRequestBodySize {
		return nil, &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize),
			Param:   "body",
		}
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, &RequestError{Message: "request body is not valid JSON", Param: "body"}
	}
	return body, nil
}

// UpstreamPath returns the upstream path for an inbound request: the URL
// path, still escaped, without its leading slash.
func UpstreamPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.EscapedPath(), "/")
}
