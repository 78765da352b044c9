package generate

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports rows written by a run.
// The number of pending rows is not known up front, so it prints counts and
// rates after every iteration that wrote something.
type ProgressTracker struct {
	writer    io.Writer
	current   int64
	iteration int
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

// NewProgressTracker creates a progress tracker writing to writer
// (typically os.Stderr).
func NewProgressTracker(writer io.Writer) *ProgressTracker {
	return &ProgressTracker{writer: writer}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.iteration = 0
}

// Iteration records a finished iteration that wrote inserted rows.
func (p *ProgressTracker) Iteration(inserted int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.iteration++
	p.current += inserted
	if inserted > 0 {
		p.report()
	}
}

// Finish prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintln(p.writer) // Print newline after final progress
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed.Seconds()
	}

	fmt.Fprintf(p.writer, "\rIteration %d: %d rows - %.1f rows/s", p.iteration, p.current, rate)
}
