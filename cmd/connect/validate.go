package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/connect/pkg/cli"
	"mercator-hq/connect/pkg/config"
	"mercator-hq/connect/pkg/upstream"
)

var validateFlags struct {
	checkUpstream bool
	timeout       time.Duration
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file and environment overrides, apply defaults
and report every invalid field.

With --check-upstream the credentials are also tried against the upstream
authentication endpoint.

Examples:
  # Validate the default config.yaml (or the environment alone)
  connect validate

  # Validate a specific file and authenticate once
  connect validate --config /etc/connect/config.yaml --check-upstream`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.checkUpstream, "check-upstream", false, "authenticate against the upstream API")
	validateCmd.Flags().DurationVar(&validateFlags.timeout, "timeout", 15*time.Second, "timeout for --check-upstream")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "✓ Configuration valid")
	printConfigSummary(out, cfg)

	if !validateFlags.checkUpstream {
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), validateFlags.timeout)
	defer cancel()

	if err := checkUpstream(ctx, cfg.Upstream); err != nil {
		return cli.NewCommandError("validate", err)
	}
	fmt.Fprintln(out, "✓ Upstream authentication succeeded")
	return nil
}

// checkUpstream obtains one token with the configured credentials.
func checkUpstream(ctx context.Context, cfg config.UpstreamConfig) error {
	client, err := upstream.NewHTTPClient(cfg)
	if err != nil {
		return err
	}

	tokens := upstream.NewTokenManager(upstream.TokenManagerConfig{
		Client:           client,
		BaseURL:          cfg.BaseURL,
		AuthenticatePath: cfg.AuthenticatePath,
		Username:         cfg.Username,
		Password:         cfg.Password,
	})
	_, err = tokens.Acquire(ctx, false)
	return err
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "  Listen address:    %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(w, "  Upstream:          %s (user %s)\n", cfg.Upstream.BaseURL, cfg.Upstream.Username)
	fmt.Fprintf(w, "  Default page size: %d\n", cfg.Paging.DefaultPageSize)
	fmt.Fprintf(w, "  Metrics:           %v\n", cfg.Telemetry.Metrics.IsEnabled())
	fmt.Fprintf(w, "  Tracing:           %v\n", cfg.Telemetry.Tracing.Enabled)
	if cfg.Journal.Enabled {
		fmt.Fprintf(w, "  Journal:           %s, %d days retention\n", cfg.Journal.Backend, cfg.Journal.Retention.Days)
	} else {
		fmt.Fprintln(w, "  Journal:           disabled")
	}
	if cfg.Upstream.TokenRefreshSchedule != "" {
		fmt.Fprintf(w, "  Token refresh:     %s\n", cfg.Upstream.TokenRefreshSchedule)
	}
}
