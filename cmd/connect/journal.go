package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/connect/pkg/cli"
	"mercator-hq/connect/pkg/config"
	"mercator-hq/connect/pkg/journal"
	"mercator-hq/connect/pkg/journal/export"
	"mercator-hq/connect/pkg/journal/retention"
	"mercator-hq/connect/pkg/journal/storage"
)

var journalFlags struct {
	since      string
	until      string
	method     string
	pathPrefix string
	kind       string
	minStatus  int
	failed     bool
	limit      int
	offset     int
	format     string
	output     string

	days   int
	dryRun bool
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the request journal",
	Long: `Query, export and prune the per-request journal.

Every proxied request is recorded with its status, the number of upstream
pages fetched, the entities streamed, token renewals and the error text of
failed or truncated requests. The journal must use a persistent backend
(sqlite) to be read from the command line.

Subcommands:
  list   - List or export journal records
  prune  - Delete records older than the retention period`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List or export journal records",
	Long: `List journal records, newest first.

Time flags accept RFC3339 timestamps or a duration relative to now.

Examples:
  # Last 20 requests
  connect journal list --limit 20

  # Failed requests of the last day
  connect journal list --failed --since 24h

  # Truncated or failing streams below a path, as CSV
  connect journal list --kind stream --path-prefix companies --min-status 500 --format csv

  # Export a whole day to a file
  connect journal list --since 2026-01-01T00:00:00Z --until 2026-01-02T00:00:00Z \
      --limit 10000 --format json --output journal.json`,
	RunE: listJournal,
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete journal records older than the retention period",
	Long: `Delete journal records older than journal.retention.days, or --days.

The running server prunes on journal.retention.prune_schedule; this command
prunes once, immediately.

Examples:
  # Apply the configured retention
  connect journal prune

  # Show how many records older than a week would be deleted
  connect journal prune --days 7 --dry-run`,
	RunE: pruneJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd, journalPruneCmd)

	f := journalListCmd.Flags()
	f.StringVar(&journalFlags.since, "since", "", "only records at or after this time (RFC3339 or duration, e.g. 24h)")
	f.StringVar(&journalFlags.until, "until", "", "only records at or before this time (RFC3339 or duration)")
	f.StringVar(&journalFlags.method, "method", "", "filter by HTTP method")
	f.StringVar(&journalFlags.pathPrefix, "path-prefix", "", "filter by upstream path prefix")
	f.StringVar(&journalFlags.kind, "kind", "", "filter by kind: stream, forward")
	f.IntVar(&journalFlags.minStatus, "min-status", 0, "only records with at least this status")
	f.BoolVar(&journalFlags.failed, "failed", false, "only failed requests (same as --min-status 400)")
	f.IntVar(&journalFlags.limit, "limit", journal.DefaultLimit, "max results")
	f.IntVar(&journalFlags.offset, "offset", 0, "pagination offset")
	f.StringVar(&journalFlags.format, "format", "text", "output format: text, json, json-pretty, csv")
	f.StringVarP(&journalFlags.output, "output", "o", "", "output file (default: stdout)")

	journalPruneCmd.Flags().IntVar(&journalFlags.days, "days", 0, "retention in days (default: journal.retention.days)")
	journalPruneCmd.Flags().BoolVar(&journalFlags.dryRun, "dry-run", false, "count the records that would be deleted")
}

// openJournal opens the configured persistent journal backend.
func openJournal(cmd *cobra.Command) (*config.Config, journal.Storage, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Journal.Backend == "memory" {
		return nil, nil, cli.NewConfigError("journal.backend", "the memory backend cannot be read from the command line")
	}

	store, err := storage.Open(cfg.Journal)
	if err != nil {
		return nil, nil, cli.NewCommandError(cmd.Name(), err)
	}
	return cfg, store, nil
}

// buildQuery turns the list flags into a validated query.
func buildQuery(now time.Time) (*journal.Query, error) {
	q := &journal.Query{
		Method:     journalFlags.method,
		PathPrefix: journalFlags.pathPrefix,
		Kind:       journalFlags.kind,
		MinStatus:  journalFlags.minStatus,
		Limit:      journalFlags.limit,
		Offset:     journalFlags.offset,
	}
	if journalFlags.failed && q.MinStatus < 400 {
		q.MinStatus = 400
	}

	var err error
	if q.Since, err = parseTimeFlag("since", journalFlags.since, now); err != nil {
		return nil, err
	}
	if q.Until, err = parseTimeFlag("until", journalFlags.until, now); err != nil {
		return nil, err
	}

	journal.ApplyQueryDefaults(q)
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// parseTimeFlag accepts an RFC3339 timestamp or a duration before now.
func parseTimeFlag(name, value string, now time.Time) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		t := now.Add(-d)
		return &t, nil
	}
	return nil, fmt.Errorf("invalid --%s %q: expected an RFC3339 time or a duration such as 24h", name, value)
}

func listJournal(cmd *cobra.Command, args []string) error {
	query, err := buildQuery(time.Now())
	if err != nil {
		return err
	}

	var exporter export.Exporter
	if journalFlags.format != "text" {
		if exporter = export.ForFormat(journalFlags.format); exporter == nil {
			return fmt.Errorf("unsupported format %q (use text, json, json-pretty or csv)", journalFlags.format)
		}
	}

	_, store, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	var progress cli.ProgressReporter
	if journalFlags.output != "" {
		file, err := os.Create(journalFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "Exporting")
	}

	ctx := cmd.Context()
	if exporter == nil {
		records, err := store.Query(ctx, query)
		if err != nil {
			return cli.NewCommandError("journal list", err)
		}
		return writeRecordTable(out, records)
	}

	if err := exportRecords(ctx, store, query, exporter, out, progress); err != nil {
		if progress != nil {
			progress.Error(err)
		}
		return cli.NewCommandError("journal list", err)
	}
	return nil
}

// exportRecords streams the query result through exporter. With a progress
// reporter the total is counted first; the SQLite backend serves one
// statement at a time.
func exportRecords(ctx context.Context, store journal.Storage, query *journal.Query, exporter export.Exporter, w io.Writer, progress cli.ProgressReporter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var total int64
	if progress != nil {
		n, err := store.Count(ctx, query)
		if err != nil {
			return err
		}
		total = min(max(n-int64(query.Offset), 0), int64(query.Limit))
	}

	records, errCh, err := store.QueryStream(ctx, query)
	if err != nil {
		return err
	}

	if progress != nil {
		progress.Start(total)
		defer progress.Finish()

		counted := make(chan *journal.Record)
		go func(in <-chan *journal.Record) {
			defer close(counted)
			for r := range in {
				select {
				case counted <- r:
					progress.Increment()
				case <-ctx.Done():
					return
				}
			}
		}(records)
		records = counted
	}

	if err := exporter.ExportStream(ctx, records, w); err != nil {
		return err
	}
	return <-errCh
}

func writeRecordTable(w io.Writer, records []*journal.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No journal records found.")
		return err
	}

	table := &cli.Table{Headers: []string{"time", "method", "path", "kind", "status", "pages", "entities", "duration", "error"}}
	for _, r := range records {
		errText := r.Error
		if r.Truncated {
			errText = "truncated: " + errText
		}
		table.AddRow(
			r.Timestamp.Local().Format(time.DateTime),
			r.Method,
			r.Path,
			r.Kind,
			strconv.Itoa(r.Status),
			strconv.Itoa(r.Pages),
			strconv.Itoa(r.Entities),
			r.Duration.Round(time.Millisecond).String(),
			errText,
		)
	}
	if verbose {
		table.Headers = append(table.Headers, "request_id")
		for i, r := range records {
			table.Rows[i] = append(table.Rows[i], r.RequestID)
		}
	}
	return cli.NewFormatter(cli.FormatText).FormatTo(w, table)
}

func pruneJournal(cmd *cobra.Command, args []string) error {
	cfg, store, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	retentionCfg := cfg.Journal.Retention
	if journalFlags.days > 0 {
		retentionCfg.Days = journalFlags.days
	}
	pruner := retention.NewPruner(store, retentionCfg, nil)
	out := cmd.OutOrStdout()
	cutoff := pruner.Cutoff()

	if journalFlags.dryRun {
		n, err := store.Count(cmd.Context(), &journal.Query{Until: &cutoff})
		if err != nil {
			return cli.NewCommandError("journal prune", err)
		}
		fmt.Fprintf(out, "%d records older than %s would be deleted\n", n, cutoff.Format(time.RFC3339))
		return nil
	}

	deleted, err := pruner.Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("journal prune", err)
	}
	fmt.Fprintf(out, "✓ Deleted %d records older than %s\n", deleted, cutoff.Format(time.RFC3339))
	return nil
}
