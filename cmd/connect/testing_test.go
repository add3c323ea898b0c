package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// execute runs the root command with args and returns what it wrote to
// stdout. Flags are reset first so values do not leak between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// clearEnv blanks the variables the config loader reads so the host
// environment (USERNAME in particular) does not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"BASE_URL", "USERNAME", "PASSWORD", "DEFAULT_PAGESIZE", "PORT", "LOG_LEVEL",
		"CONNECT_UPSTREAM_AUTHENTICATE_PATH", "CONNECT_UPSTREAM_TOKEN_REFRESH_SCHEDULE",
		"CONNECT_SERVER_LISTEN_ADDRESS", "CONNECT_TELEMETRY_LOGGING_LEVEL",
		"CONNECT_JOURNAL_ENABLED", "CONNECT_JOURNAL_BACKEND", "CONNECT_JOURNAL_SQLITE_PATH",
	} {
		t.Setenv(name, "")
	}
}

// writeConfig writes a config file pointing at baseURL with a SQLite
// journal in the test directory. It returns the config and journal paths.
func writeConfig(t *testing.T, baseURL, backend string) (string, string) {
	t.Helper()
	clearEnv(t)

	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal.db")
	cfgPath := filepath.Join(dir, "config.yaml")

	content := fmt.Sprintf(`upstream:
  base_url: %s
  username: svc
  password: secret
telemetry:
  logging:
    level: error
journal:
  enabled: true
  backend: %s
  sqlite:
    path: %s
`, baseURL, backend, journalPath)

	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return cfgPath, journalPath
}
