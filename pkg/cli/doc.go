/*
Package cli provides command-line interface utilities for the connect command.

Output Formatting:

Command results are printed as text or JSON. Tables are column-aligned in
text mode and become an array of objects in JSON mode:

	table := &cli.Table{Headers: []string{"time", "status", "path"}}
	table.AddRow(ts, "200", "companies")
	if err := cli.NewFormatter(cli.FormatText).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

Journal exports written to a file report progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr, "Exporting")
	progress.Start(total)
	for range records {
		progress.Increment()
	}
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, cancel := cli.SetupSignalHandler(context.Background())
	defer cancel()

Errors:

ConfigError marks an unusable configuration and maps to exit code 2 through
ExitCode; every other failure exits with 1.
*/
package cli
