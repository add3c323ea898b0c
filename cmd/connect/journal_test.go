package main

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/connect/pkg/cli"
	"mercator-hq/connect/pkg/config"
	"mercator-hq/connect/pkg/journal"
	"mercator-hq/connect/pkg/journal/storage"
)

// seedJournal stores records into the SQLite journal at path.
func seedJournal(t *testing.T, path string, records ...*journal.Record) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(config.SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	defer store.Close()

	for _, r := range records {
		if err := store.Store(context.Background(), r); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}
}

func sampleRecords(now time.Time) []*journal.Record {
	return []*journal.Record{
		{
			ID: "r1", RequestID: "req-1", Timestamp: now.Add(-1 * time.Hour),
			Method: "GET", Path: "companies", Kind: journal.KindStream,
			Status: 200, Pages: 3, Entities: 250, Duration: 1200 * time.Millisecond,
		},
		{
			ID: "r2", RequestID: "req-2", Timestamp: now.Add(-30 * time.Minute),
			Method: "POST", Path: "contacts", Kind: journal.KindForward,
			Status: 409, Duration: 80 * time.Millisecond, Error: "conflict",
		},
		{
			ID: "r3", RequestID: "req-3", Timestamp: now.Add(-40 * 24 * time.Hour),
			Method: "GET", Path: "companies/7/notes", Kind: journal.KindStream,
			Status: 200, Pages: 2, Entities: 120, Truncated: true, Error: "upstream returned 502",
		},
	}
}

func TestJournalList_Text(t *testing.T) {
	cfgPath, journalPath := writeConfig(t, "http://127.0.0.1:1", "sqlite")
	seedJournal(t, journalPath, sampleRecords(time.Now())...)

	out, err := execute(t, "journal", "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("journal list error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header and 3 records:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "TIME") || !strings.Contains(lines[0], "ENTITIES") {
		t.Errorf("header = %q", lines[0])
	}
	// Newest first.
	if !strings.Contains(lines[1], "contacts") || !strings.Contains(lines[1], "conflict") {
		t.Errorf("first row = %q, want the POST to contacts", lines[1])
	}
	if !strings.Contains(lines[3], "truncated: upstream returned 502") {
		t.Errorf("last row = %q, want the truncated stream", lines[3])
	}
}

func TestJournalList_Filters(t *testing.T) {
	cfgPath, journalPath := writeConfig(t, "http://127.0.0.1:1", "sqlite")
	seedJournal(t, journalPath, sampleRecords(time.Now())...)

	tests := []struct {
		name     string
		args     []string
		wantRows int
		wantPath string
	}{
		{name: "failed", args: []string{"--failed"}, wantRows: 1, wantPath: "contacts"},
		{name: "since", args: []string{"--since", "24h"}, wantRows: 2},
		{name: "kind and prefix", args: []string{"--kind", "stream", "--path-prefix", "companies/"}, wantRows: 1, wantPath: "companies/7/notes"},
		{name: "method lower case", args: []string{"--method", "post"}, wantRows: 1, wantPath: "contacts"},
		{name: "limit", args: []string{"--limit", "1"}, wantRows: 1, wantPath: "contacts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"journal", "list", "--config", cfgPath}, tt.args...)
			out, err := execute(t, args...)
			if err != nil {
				t.Fatalf("journal list error = %v", err)
			}

			rows := strings.Split(strings.TrimSpace(out), "\n")[1:]
			if len(rows) != tt.wantRows {
				t.Fatalf("got %d rows, want %d:\n%s", len(rows), tt.wantRows, out)
			}
			if tt.wantPath != "" && !strings.Contains(rows[0], tt.wantPath) {
				t.Errorf("row = %q, want path %q", rows[0], tt.wantPath)
			}
		})
	}
}

func TestJournalList_Empty(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:1", "sqlite")

	out, err := execute(t, "journal", "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("journal list error = %v", err)
	}
	if !strings.Contains(out, "No journal records found.") {
		t.Errorf("output = %q", out)
	}
}

func TestJournalList_CSVToFile(t *testing.T) {
	cfgPath, journalPath := writeConfig(t, "http://127.0.0.1:1", "sqlite")
	seedJournal(t, journalPath, sampleRecords(time.Now())...)

	output := filepath.Join(t.TempDir(), "journal.csv")
	if _, err := execute(t, "journal", "list", "--config", cfgPath, "--format", "csv", "--output", output); err != nil {
		t.Fatalf("journal list error = %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header and 3 records", len(rows))
	}
	if rows[0][0] != "id" || rows[1][0] != "r2" {
		t.Errorf("rows = %v", rows[:2])
	}
}

func TestJournalList_InvalidFlags(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:1", "sqlite")

	tests := []struct {
		name string
		args []string
	}{
		{name: "format", args: []string{"--format", "xml"}},
		{name: "since", args: []string{"--since", "yesterday"}},
		{name: "kind", args: []string{"--kind", "batch"}},
		{name: "limit", args: []string{"--limit", "20000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"journal", "list", "--config", cfgPath}, tt.args...)
			if _, err := execute(t, args...); err == nil {
				t.Error("journal list succeeded, want an error")
			}
		})
	}
}

func TestJournalList_MemoryBackend(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:1", "memory")

	_, err := execute(t, "journal", "list", "--config", cfgPath)

	var ce *cli.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want a ConfigError", err)
	}
	if ce.Field != "journal.backend" {
		t.Errorf("Field = %q, want journal.backend", ce.Field)
	}
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("ExitCode = %d, want %d", cli.ExitCode(err), cli.ExitConfig)
	}
}

func TestJournalPrune(t *testing.T) {
	cfgPath, journalPath := writeConfig(t, "http://127.0.0.1:1", "sqlite")
	seedJournal(t, journalPath, sampleRecords(time.Now())...)

	out, err := execute(t, "journal", "prune", "--config", cfgPath, "--dry-run")
	if err != nil {
		t.Fatalf("journal prune --dry-run error = %v", err)
	}
	if !strings.HasPrefix(out, "1 records older than") {
		t.Errorf("dry run output = %q", out)
	}

	out, err = execute(t, "journal", "prune", "--config", cfgPath)
	if err != nil {
		t.Fatalf("journal prune error = %v", err)
	}
	if !strings.HasPrefix(out, "✓ Deleted 1 records") {
		t.Errorf("prune output = %q", out)
	}

	store, err := storage.NewSQLiteStorage(config.SQLiteConfig{Path: journalPath})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	defer store.Close()

	n, err := store.Count(context.Background(), &journal.Query{})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("%d records left, want 2", n)
	}
}

func TestJournalPrune_Days(t *testing.T) {
	cfgPath, journalPath := writeConfig(t, "http://127.0.0.1:1", "sqlite")
	seedJournal(t, journalPath, sampleRecords(time.Now())...)

	out, err := execute(t, "journal", "prune", "--config", cfgPath, "--days", "100", "--dry-run")
	if err != nil {
		t.Fatalf("journal prune error = %v", err)
	}
	if !strings.HasPrefix(out, "0 records older than") {
		t.Errorf("output = %q", out)
	}
}

func TestParseTimeFlag(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   string
		want    *time.Time
		wantErr bool
	}{
		{name: "empty", value: ""},
		{name: "rfc3339", value: "2026-03-01T08:30:00Z", want: ptr(time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC))},
		{name: "duration", value: "36h", want: ptr(now.Add(-36 * time.Hour))},
		{name: "zero duration", value: "0s", want: ptr(now)},
		{name: "negative duration", value: "-1h", wantErr: true},
		{name: "date only", value: "2026-03-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimeFlag("since", tt.value, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimeFlag() error = %v, wantErr %v", err, tt.wantErr)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parseTimeFlag() = %v, want nil", got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("parseTimeFlag() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	resetFlags(journalListCmd)
	defer resetFlags(journalListCmd)

	journalFlags.failed = true
	journalFlags.minStatus = 500
	journalFlags.method = "delete"
	journalFlags.since = "1h"
	journalFlags.limit = 0

	q, err := buildQuery(now)
	if err != nil {
		t.Fatalf("buildQuery() error = %v", err)
	}
	if q.MinStatus != 500 {
		t.Errorf("MinStatus = %d, want 500 (--failed must not lower it)", q.MinStatus)
	}
	if q.Method != "DELETE" {
		t.Errorf("Method = %q, want DELETE", q.Method)
	}
	if q.Limit != journal.DefaultLimit {
		t.Errorf("Limit = %d, want %d", q.Limit, journal.DefaultLimit)
	}
	if q.Since == nil || !q.Since.Equal(now.Add(-time.Hour)) {
		t.Errorf("Since = %v", q.Since)
	}

	journalFlags.since, journalFlags.until = "1h", "2h"
	if _, err := buildQuery(now); err == nil {
		t.Error("buildQuery() accepted since after until")
	}
}

func ptr[T any](v T) *T { return &v }
