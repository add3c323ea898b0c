// Package tracing provides OpenTelemetry distributed tracing for connect.
//
// Every inbound request gets a server span (HTTPMiddleware), every upstream
// call a client span carrying the method, URL, attempt number and response
// status, and the W3C traceparent header is injected into upstream requests
// so that the upstream API can join the trace.
//
// Spans are exported over OTLP/gRPC:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: "otel-collector:4317"
//	    insecure: true
//	    sample_ratio: 0.1
//
// When tracing is disabled a noop tracer is used and spans cost next to nothing.
package tracing
