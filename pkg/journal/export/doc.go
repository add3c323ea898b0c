// Package export renders journal records as JSON or CSV. Both exporters
// accept either a slice or a channel (as returned by Storage.QueryStream) so
// large journals can be written without loading them into memory.
package export

import (
	"context"
	"io"

	"mercator-hq/connect/pkg/journal"
)

// Exporter writes a stream of records in one format.
type Exporter interface {
	Export(ctx context.Context, records []*journal.Record, w io.Writer) error
	ExportStream(ctx context.Context, ch <-chan *journal.Record, w io.Writer) error
}

// ForFormat returns the exporter for "json" or "csv", or nil.
func ForFormat(format string) Exporter {
	switch format {
	case "json":
		return NewJSONExporter(false)
	case "json-pretty":
		return NewJSONExporter(true)
	case "csv":
		return NewCSVExporter(true)
	default:
		return nil
	}
}
