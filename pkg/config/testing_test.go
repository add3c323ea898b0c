package config

// minimalConfig returns a configuration that passes validation.
func minimalConfig() *Config {
	cfg := &Config{
		Upstream: UpstreamConfig{
			BaseURL:  "https://api.example.com/v1",
			Username: "svc",
			Password: "secret",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// clearEnv blanks every variable the loader reads so host settings
// (USERNAME in particular) do not leak into a test.
func clearEnv(t interface{ Setenv(string, string) }) {
	for _, name := range []string{
		"BASE_URL", "USERNAME", "PASSWORD", "DEFAULT_PAGESIZE", "PORT", "LOG_LEVEL",
		"CONNECT_UPSTREAM_AUTHENTICATE_PATH", "CONNECT_UPSTREAM_TIMEOUT",
		"CONNECT_UPSTREAM_HTTP2", "CONNECT_UPSTREAM_TOKEN_REFRESH_SCHEDULE",
		"CONNECT_SERVER_LISTEN_ADDRESS", "CONNECT_TELEMETRY_LOGGING_LEVEL",
		"CONNECT_TELEMETRY_LOGGING_FORMAT", "CONNECT_TELEMETRY_METRICS_ENABLED",
		"CONNECT_TELEMETRY_TRACING_ENABLED", "CONNECT_TELEMETRY_TRACING_ENDPOINT",
		"CONNECT_JOURNAL_ENABLED", "CONNECT_JOURNAL_BACKEND", "CONNECT_JOURNAL_SQLITE_PATH",
	} {
		t.Setenv(name, "")
	}
}
