// Package logging configures structured logging for connect on top of
// log/slog.
//
// New builds a JSON (default) or text handler at the configured level,
// wraps it with a RedactingHandler that masks the upstream password, bearer
// tokens and JWTs, and adds request_id and trace_id from the context:
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, nil)
//	slog.Default().With("component", "proxy").InfoContext(ctx, "stream finished")
//
// The level can be changed at runtime with Logger.SetLevel.
package logging
