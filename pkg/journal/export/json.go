package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/connect/pkg/journal"
)

// JSONExporter writes records as a JSON array.
type JSONExporter struct {
	// Pretty indents each record.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records as one JSON array.
func (e *JSONExporter) Export(ctx context.Context, records []*journal.Record, w io.Writer) error {
	ch := make(chan *journal.Record, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return e.ExportStream(ctx, ch, w)
}

// ExportStream writes records from ch as one JSON array, one record at a time.
func (e *JSONExporter) ExportStream(ctx context.Context, ch <-chan *journal.Record, w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return &journal.ExportError{Format: "json", Cause: err}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case record, ok := <-ch:
			if !ok {
				closing := "]"
				if e.Pretty && count > 0 {
					closing = "\n]"
				}
				if _, err := io.WriteString(w, closing+"\n"); err != nil {
					return &journal.ExportError{Format: "json", Count: count, Cause: err}
				}
				return nil
			}

			sep := ","
			if count == 0 {
				sep = ""
			}
			if e.Pretty {
				sep += "\n  "
			}

			data, err := e.marshal(record)
			if err != nil {
				return &journal.ExportError{Format: "json", Count: count, Cause: err}
			}
			if _, err := io.WriteString(w, sep); err != nil {
				return &journal.ExportError{Format: "json", Count: count, Cause: err}
			}
			if _, err := w.Write(data); err != nil {
				return &journal.ExportError{Format: "json", Count: count, Cause: err}
			}
			count++
		}
	}
}

func (e *JSONExporter) marshal(record *journal.Record) ([]byte, error) {
	if e.Pretty {
		return json.MarshalIndent(record, "  ", "  ")
	}
	return json.Marshal(record)
}
