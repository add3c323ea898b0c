package cli

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestSimpleProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "Exporting")

	progress.Start(4)
	for i := 0; i < 4; i++ {
		progress.Increment()
	}
	progress.Finish()

	output := buf.String()
	if !strings.Contains(output, "Exporting:") {
		t.Errorf("output = %q, want the label", output)
	}
	if !strings.Contains(output, "(4/4)") || !strings.Contains(output, "100.0%") {
		t.Errorf("output = %q, want a completed bar", output)
	}
}

func TestSimpleProgress_FewerThanExpected(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "Exporting")

	// Records may be pruned between counting and exporting.
	progress.Start(10)
	progress.Increment()
	progress.Finish()

	if !strings.Contains(buf.String(), "(1/1)") {
		t.Errorf("output = %q, want the final count as total", buf.String())
	}
}

func TestSimpleProgress_UnknownTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "Exporting")

	progress.Start(0)
	progress.Increment()
	progress.Finish()

	if !strings.Contains(buf.String(), "Exporting: 1") {
		t.Errorf("output = %q, want a plain counter", buf.String())
	}
}

func TestSimpleProgress_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "Exporting")

	progress.Start(100)
	progress.Error(fmt.Errorf("disk full"))

	output := buf.String()
	if !strings.Contains(output, "Error:") || !strings.Contains(output, "disk full") {
		t.Errorf("output = %q, want the error", output)
	}
}

func TestSimpleProgress_Concurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "Exporting").(*SimpleProgress)
	progress.Start(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				progress.Increment()
			}
		}()
	}
	wg.Wait()

	if progress.current != 100 {
		t.Errorf("current = %d, want 100", progress.current)
	}
}
