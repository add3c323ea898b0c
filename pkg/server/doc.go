// Package server provides the inbound HTTP server of the proxy.
//
// The server mounts the operational routes and hands every other path to
// the resource handler:
//
//   - GET /health - Liveness probe (always returns 200)
//   - GET /ready - Readiness probe (upstream token held or obtainable)
//   - GET /metrics - Prometheus metrics, when enabled
//   - /<path> - Upstream resource: GET is streamed, PUT/POST/DELETE/PATCH forwarded
//
// # Middleware Chain
//
// Requests pass through the following middleware (outermost first):
//  1. Recovery: recovers from panics and returns 500; aborted responses pass through
//  2. RequestID: accepts or generates X-Request-ID
//  3. Tracing: extracts trace context and opens a server span
//  4. Logging: one access log line per request
//
// # Graceful Shutdown
//
// Start blocks until its context is cancelled, then stops accepting
// connections and waits up to server.shutdown_timeout for in-flight
// requests. Long streams still running at the deadline are cut off.
//
//	srv := server.NewServer(&cfg.Server, server.Options{Resource: handler})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
