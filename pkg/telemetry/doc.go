// Package telemetry groups the observability packages of connect:
//
//   - logging: slog setup with credential redaction and request context
//   - metrics: Prometheus collector and /metrics handler
//   - tracing: OpenTelemetry spans and W3C trace-context propagation
//   - health: liveness and readiness probes
//
// Each subpackage is configured from the telemetry section of the
// configuration file and wired together in cmd/connect.
package telemetry
