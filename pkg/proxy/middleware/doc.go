// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// # Middleware Chain
//
// The server wraps its mux as:
//
//	handler = Chain(mux,
//	    RecoveryMiddleware,
//	    RequestIDMiddleware,
//	    tracing.HTTPMiddleware(tracer),
//	    LoggingMiddleware(logger),
//	)
//
// Recovery is outermost so it sees panics from every layer. The request ID
// and trace span are in the context before LoggingMiddleware runs, so the
// "request completed" line carries both.
//
// # Request ID
//
// RequestIDMiddleware reuses a well-formed X-Request-ID from the caller or
// generates a UUID v4. The ID is stored with logging.WithRequestID and
// echoed in the response header.
//
// # Aborted responses
//
// A streamed listing that fails after its 200 status was sent is ended with
// panic(http.ErrAbortHandler). RecoveryMiddleware re-panics that value so
// net/http closes the connection, and LoggingMiddleware logs such requests
// with aborted=true.
package middleware
