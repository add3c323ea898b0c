package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "upstream.base_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validatePaging(&cfg.Paging)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates inbound server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must not be negative",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	return errs
}

// validateUpstream validates the upstream API section. The base URL and the
// credential pair are mandatory: without them the process cannot serve anything.
func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.BaseURL == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.base_url",
			Message: "base URL is required (BASE_URL)",
		})
	} else if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.base_url",
			Message: fmt.Sprintf("invalid URL %q", cfg.BaseURL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, FieldError{
			Field:   "upstream.base_url",
			Message: "URL scheme must be http or https",
		})
	}

	if cfg.Username == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.username",
			Message: "username is required (USERNAME)",
		})
	}
	if cfg.Password == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.password",
			Message: "password is required (PASSWORD)",
		})
	}
	if !strings.HasPrefix(cfg.AuthenticatePath, "/") {
		errs = append(errs, FieldError{
			Field:   "upstream.authenticate_path",
			Message: "authenticate path must start with /",
		})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.timeout",
			Message: "timeout must not be negative",
		})
	}
	if cfg.TokenRefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.TokenRefreshSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "upstream.token_refresh_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

// validatePaging validates pagination settings.
func validatePaging(cfg *PagingConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultPageSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "paging.default_page_size",
			Message: "default page size must be positive",
		})
	}
	if cfg.PageParam == cfg.PageSizeParam {
		errs = append(errs, FieldError{
			Field:   "paging.page_param",
			Message: "page and page size parameters must differ",
		})
	}

	return errs
}

// validateTelemetry validates logging, metrics and tracing settings.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (expected debug, info, warn or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (expected json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.IsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
	}

	return errs
}

// validateJournal validates the request journal settings.
func validateJournal(cfg *JournalConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "journal.backend",
			Message: fmt.Sprintf("unsupported backend %q (expected memory or sqlite)", cfg.Backend),
		})
	}

	if cfg.BufferSize < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.buffer_size",
			Message: "buffer size must not be negative",
		})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.retention.days",
			Message: "retention days must not be negative",
		})
	}
	if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "journal.retention.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}

	return errs
}
