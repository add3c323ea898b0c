package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"mercator-hq/connect/pkg/journal"
)

var csvHeader = []string{
	"id", "request_id", "timestamp", "method", "path", "kind", "status",
	"pages", "entities", "bytes", "renewals", "duration_ms", "truncated", "error",
}

// CSVExporter writes records as CSV rows.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes records as CSV.
func (e *CSVExporter) Export(ctx context.Context, records []*journal.Record, w io.Writer) error {
	ch := make(chan *journal.Record, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return e.ExportStream(ctx, ch, w)
}

// ExportStream writes records from ch as CSV, flushing every 100 rows.
func (e *CSVExporter) ExportStream(ctx context.Context, ch <-chan *journal.Record, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return &journal.ExportError{Format: "csv", Cause: err}
		}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case record, ok := <-ch:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return &journal.ExportError{Format: "csv", Count: count, Cause: err}
				}
				return nil
			}

			if err := writer.Write(row(record)); err != nil {
				return &journal.ExportError{Format: "csv", Count: count, Cause: err}
			}
			count++

			if count%100 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return &journal.ExportError{Format: "csv", Count: count, Cause: err}
				}
			}
		}
	}
}

func row(r *journal.Record) []string {
	return []string{
		r.ID,
		r.RequestID,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Method,
		r.Path,
		r.Kind,
		strconv.Itoa(r.Status),
		strconv.Itoa(r.Pages),
		strconv.Itoa(r.Entities),
		strconv.FormatInt(r.Bytes, 10),
		strconv.Itoa(r.Renewals),
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
		strconv.FormatBool(r.Truncated),
		r.Error,
	}
}
