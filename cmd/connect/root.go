package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/connect/pkg/cli"
	"mercator-hq/connect/pkg/config"
)

const defaultConfigFile = "config.yaml"

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect - paginating REST proxy for bearer-token APIs",
	Long: `Connect exposes a uniform REST interface over one upstream API that
requires bearer-token authentication and page-cursor pagination.

  - GET requests follow every page cursor and stream one JSON array
  - PUT, POST, DELETE and PATCH requests are forwarded once and relayed
  - The upstream token is obtained lazily and renewed on 401
  - Every request can be journaled for later inspection`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code matching the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configOptional reports whether a missing config file is acceptable. Only
// the default path may be absent; the service is then configured from the
// environment alone.
func configOptional(cmd *cobra.Command) bool {
	return !cmd.Root().PersistentFlags().Changed("config")
}

// loadConfig reads the configuration for one-shot commands.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile, configOptional(cmd))
	if err != nil {
		return nil, cli.WrapConfigError(err)
	}
	return cfg, nil
}
