package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readFile(path, false)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. A missing file is not an error when
// optional is true: the service is commonly configured through environment
// variables alone (BASE_URL, USERNAME, PASSWORD, DEFAULT_PAGESIZE, PORT).
//
// The loading sequence is:
// 1. Load YAML from file (if present)
// 2. Apply environment variable overrides
// 3. Apply default values
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string, optional bool) (*Config, error) {
	cfg, err := readFile(path, optional)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// readFile parses the YAML file at path into a fresh Config.
func readFile(path string, optional bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// The unprefixed variables are the service's historical interface; the
// CONNECT_SECTION_FIELD variables cover the remaining sections.
func applyEnvOverrides(cfg *Config) error {
	var errs []FieldError

	// Upstream
	if val := os.Getenv("BASE_URL"); val != "" {
		cfg.Upstream.BaseURL = val
	}
	if val := os.Getenv("USERNAME"); val != "" {
		cfg.Upstream.Username = val
	}
	if val := os.Getenv("PASSWORD"); val != "" {
		cfg.Upstream.Password = val
	}
	if val := os.Getenv("CONNECT_UPSTREAM_AUTHENTICATE_PATH"); val != "" {
		cfg.Upstream.AuthenticatePath = val
	}
	if val := os.Getenv("CONNECT_UPSTREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Upstream.Timeout = d
		} else {
			errs = append(errs, FieldError{Field: "CONNECT_UPSTREAM_TIMEOUT", Message: err.Error()})
		}
	}
	if val := os.Getenv("CONNECT_UPSTREAM_HTTP2"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Upstream.HTTP2 = b
		}
	}
	if val := os.Getenv("CONNECT_UPSTREAM_TOKEN_REFRESH_SCHEDULE"); val != "" {
		cfg.Upstream.TokenRefreshSchedule = val
	}

	// Paging
	if val := os.Getenv("DEFAULT_PAGESIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Paging.DefaultPageSize = i
		} else {
			errs = append(errs, FieldError{Field: "DEFAULT_PAGESIZE", Message: "must be an integer"})
		}
	}

	// Server
	if val := os.Getenv("PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = i
			cfg.Server.ListenAddress = ""
		} else {
			errs = append(errs, FieldError{Field: "PORT", Message: "must be an integer"})
		}
	}
	if val := os.Getenv("CONNECT_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}

	// Telemetry
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("CONNECT_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("CONNECT_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("CONNECT_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	if val := os.Getenv("CONNECT_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("CONNECT_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}

	// Journal
	if val := os.Getenv("CONNECT_JOURNAL_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Journal.Enabled = b
		}
	}
	if val := os.Getenv("CONNECT_JOURNAL_BACKEND"); val != "" {
		cfg.Journal.Backend = val
	}
	if val := os.Getenv("CONNECT_JOURNAL_SQLITE_PATH"); val != "" {
		cfg.Journal.SQLite.Path = val
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
