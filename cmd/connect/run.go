package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/connect/pkg/cli"
	"mercator-hq/connect/pkg/config"
	"mercator-hq/connect/pkg/journal"
	"mercator-hq/connect/pkg/journal/retention"
	"mercator-hq/connect/pkg/journal/storage"
	"mercator-hq/connect/pkg/proxy"
	"mercator-hq/connect/pkg/proxy/handlers"
	"mercator-hq/connect/pkg/server"
	"mercator-hq/connect/pkg/telemetry/health"
	"mercator-hq/connect/pkg/telemetry/logging"
	"mercator-hq/connect/pkg/telemetry/metrics"
	"mercator-hq/connect/pkg/telemetry/tracing"
	"mercator-hq/connect/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy server",
	Long: `Start the proxy server with the specified configuration.

The server authenticates against the upstream lazily, on the first request
or the first readiness probe, and renews the token whenever the upstream
answers 401.

Examples:
  # Start with config.yaml, or with BASE_URL/USERNAME/PASSWORD alone
  connect run

  # Start with a custom config
  connect run --config /etc/connect/config.yaml

  # Override listen address
  connect run --listen 0.0.0.0:8080

  # Validate config without starting server
  connect run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", true, "reload credentials, page size and log level when the config file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	optional := configOptional(cmd)
	if err := config.Initialize(cfgFile, optional); err != nil {
		return cli.WrapConfigError(err)
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer app.close()

	if runFlags.watch {
		app.watchConfig(ctx, cfgFile, optional)
	}

	logger.Info("starting connect",
		"version", Version,
		"upstream", cfg.Upstream.BaseURL,
		"default_page_size", cfg.Paging.DefaultPageSize,
		"journal", cfg.Journal.Enabled,
	)

	if err := app.server.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// app holds the running components so they can be reconfigured on reload
// and closed in order on shutdown.
type app struct {
	logger    *logging.Logger
	tracer    *tracing.Tracer
	tokens    *upstream.TokenManager
	refresher *upstream.RefreshScheduler
	streamer  *proxy.Streamer
	store     journal.Storage
	recorder  *journal.Recorder
	pruner    *retention.Pruner
	server    *server.Server
}

func newApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	a := &app{logger: logger}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tracer

	client, err := upstream.NewHTTPClient(cfg.Upstream)
	if err != nil {
		a.close()
		return nil, err
	}

	a.tokens = upstream.NewTokenManager(upstream.TokenManagerConfig{
		Client:           client,
		BaseURL:          cfg.Upstream.BaseURL,
		AuthenticatePath: cfg.Upstream.AuthenticatePath,
		Username:         cfg.Upstream.Username,
		Password:         cfg.Upstream.Password,
		Logger:           logger.Logger,
		Recorder:         collector,
	})
	forwarder := upstream.NewForwarder(upstream.ForwarderConfig{
		Client:   client,
		BaseURL:  cfg.Upstream.BaseURL,
		Tokens:   a.tokens,
		Tracer:   tracer,
		Logger:   logger.Logger,
		Recorder: collector,
	})
	a.streamer = proxy.NewStreamer(proxy.StreamerConfig{
		Forwarder: forwarder,
		Paging:    cfg.Paging,
		Tracer:    tracer,
		Logger:    logger.Logger,
		Recorder:  collector,
	})

	resourceCfg := handlers.ResourceConfig{
		Streamer:  a.streamer,
		Forwarder: forwarder,
		Metrics:   collector,
		Logger:    logger.Logger,
	}

	if cfg.Journal.Enabled {
		if err := a.openJournal(ctx, cfg.Journal, collector); err != nil {
			a.close()
			return nil, err
		}
		resourceCfg.Journal = a.recorder
	}

	if schedule := cfg.Upstream.TokenRefreshSchedule; schedule != "" {
		a.refresher, err = upstream.NewRefreshScheduler(schedule, a.tokens)
		if err != nil {
			a.close()
			return nil, err
		}
		if err := a.refresher.Start(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	checker := health.New(0)
	handlers.RegisterChecks(checker, a.tokens, a.store)

	a.server = server.NewServer(&cfg.Server, server.Options{
		Resource:    handlers.NewResourceHandler(resourceCfg),
		Health:      checker,
		Metrics:     collector,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Tracer:      tracer,
		Logger:      logger.Logger,
	})
	return a, nil
}

// openJournal opens the journal backend, its asynchronous recorder and the
// retention scheduler.
func (a *app) openJournal(ctx context.Context, cfg config.JournalConfig, collector *metrics.Collector) error {
	store, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	a.store = store

	a.recorder = journal.NewRecorder(journal.RecorderConfig{
		Storage:    store,
		BufferSize: cfg.BufferSize,
		Logger:     a.logger.Logger,
		Metrics:    collector,
	})

	a.pruner = retention.NewPruner(store, cfg.Retention, collector)
	if err := a.pruner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start journal retention: %w", err)
	}
	if next := a.pruner.NextPruning(); next != nil {
		a.logger.Debug("journal retention scheduled", "next_pruning", next)
	}

	a.logger.Info("journal enabled", "backend", cfg.Backend, "retention_days", cfg.Retention.Days)
	return nil
}

// watchConfig applies reloaded credentials, page size and log level to the
// running components. Other settings need a restart.
func (a *app) watchConfig(ctx context.Context, path string, optional bool) {
	if _, err := os.Stat(path); err != nil {
		if optional {
			a.logger.Debug("no config file to watch", "path", path)
			return
		}
		a.logger.Warn("config file cannot be watched", "path", path, "error", err)
		return
	}

	w, err := config.NewWatcher(path, optional, a.logger.Logger)
	if err != nil {
		a.logger.Warn("config watcher unavailable", "error", err)
		return
	}

	go func() {
		if err := w.Watch(ctx, a.apply); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("config watcher failed", "error", err)
		}
	}()
}

func (a *app) apply(cfg *config.Config) {
	if err := a.logger.SetLevel(cfg.Telemetry.Logging.Level); err != nil {
		a.logger.Warn("log level not changed", "error", err)
	}
	a.streamer.SetDefaultPageSize(cfg.Paging.DefaultPageSize)
	a.tokens.SetCredentials(cfg.Upstream.Username, cfg.Upstream.Password)

	a.logger.Info("configuration applied",
		"level", cfg.Telemetry.Logging.Level,
		"default_page_size", cfg.Paging.DefaultPageSize,
	)
}

// close releases components in reverse start order. The recorder is closed
// after the server so in-flight requests can still journal.
func (a *app) close() {
	if a.refresher != nil {
		a.refresher.Stop()
	}
	if a.pruner != nil {
		a.pruner.Stop()
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.logger.Error("journal recorder close failed", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("journal close failed", "error", err)
		}
	}
	if a.tracer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown failed", "error", err)
		}
	}
	a.logger.Info("connect stopped")
}
