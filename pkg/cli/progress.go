package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports how many requests of a batch have finished.
type ProgressReporter interface {
	Start(total int64)
	Increment()
	Finish()
	Error(err error)
}

// SimpleProgress renders a one-line progress bar. It is safe for
// concurrent use, so outcome collectors can report from any goroutine.
type SimpleProgress struct {
	mu      sync.Mutex
	total   int64
	current int64
	failed  int64
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{writer: w}
}

// Start resets the reporter for a batch of total requests.
func (p *SimpleProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.failed = 0
	p.started = time.Now()
	p.render()
}

// Increment records one finished request.
func (p *SimpleProgress) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current < p.total {
		p.current++
	}
	p.render()
}

// Finish renders the final state and ends the line.
func (p *SimpleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render()
	fmt.Fprintln(p.writer)
}

// Error reports a failed request on its own line.
func (p *SimpleProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed++
	fmt.Fprintf(p.writer, "\n✗ Error: %v\n", err)
}

func (p *SimpleProgress) render() {
	if p.total == 0 {
		return
	}

	percent := float64(p.current) / float64(p.total) * 100
	barWidth := 40
	filled := int(float64(barWidth) * percent / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.current) / elapsed
	}

	fmt.Fprintf(p.writer, "\rRequests: [%s] %.1f%% (%d/%d, %d failed) %.1f req/s",
		bar, percent, p.current, p.total, p.failed, rate)
}
