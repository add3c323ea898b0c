// Package config provides configuration management for connect.
//
// Configuration is read from an optional YAML file and overlaid with
// environment variables. The service has historically been configured through
// environment variables alone, so a deployment needs nothing more than:
//
//	BASE_URL=https://api.example.com/v1
//	USERNAME=svc-account
//	PASSWORD=secret
//	DEFAULT_PAGESIZE=100
//	PORT=5000
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("connect.yaml")
//
//  2. From a YAML file (optional) with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("connect.yaml", true)
//
// # Environment Variable Overrides
//
// Besides the unprefixed variables above and LOG_LEVEL, variables follow the
// naming convention CONNECT_SECTION_FIELD, for example:
//
//   - CONNECT_UPSTREAM_TIMEOUT overrides upstream.timeout
//   - CONNECT_TELEMETRY_LOGGING_FORMAT overrides telemetry.logging.format
//   - CONNECT_JOURNAL_SQLITE_PATH overrides journal.sqlite.path
//
// # Precedence
//
//  1. Values from the YAML file
//  2. Environment variable overrides
//  3. Defaults for anything still unset (defaults.go)
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and publishes each
// valid revision. Only settings that are safe to swap at runtime (log level,
// default page size, credentials) are applied by the running server.
package config
