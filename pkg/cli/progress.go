package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress for long-running operations such as
// journal exports.
type ProgressReporter interface {
	Start(total int64)
	Increment()
	Finish()
	Error(err error)
}

// SimpleProgress implements a text progress bar. It redraws at most every
// renderInterval so that per-record updates stay cheap.
type SimpleProgress struct {
	mu         sync.Mutex
	label      string
	total      int64
	current    int64
	started    time.Time
	lastRender time.Time
	writer     io.Writer
}

const renderInterval = 100 * time.Millisecond

// NewProgressReporter creates a progress reporter that writes to w. If w is
// nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer, label string) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{
		writer: w,
		label:  label,
	}
}

// Start initializes the progress reporter with the total number of items.
func (p *SimpleProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.started = time.Now()

	p.render()
}

// Increment advances the progress by one item.
func (p *SimpleProgress) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	if time.Since(p.lastRender) >= renderInterval {
		p.render()
	}
}

// Finish renders the final state.
func (p *SimpleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current < p.total {
		p.total = p.current
	}
	p.render()
	fmt.Fprintln(p.writer)
}

// Error reports an error during progress.
func (p *SimpleProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\n✗ Error: %v\n", err)
}

func (p *SimpleProgress) render() {
	p.lastRender = time.Now()
	if p.total == 0 {
		fmt.Fprintf(p.writer, "\r%s: %d", p.label, p.current)
		return
	}

	current := min(p.current, p.total)
	percent := float64(current) / float64(p.total) * 100
	barWidth := 40
	filled := int(float64(barWidth) * percent / 100)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(current) / elapsed
	}

	fmt.Fprintf(p.writer, "\r%s: [%s] %.1f%% (%d/%d) %.1f records/s",
		p.label, bar, percent, current, p.total, rate)
}
