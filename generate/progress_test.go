package generate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf)

	tracker.Start()
	tracker.Iteration(10)
	tracker.Iteration(5)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "Iteration 1: 10 rows")
	assert.Contains(t, output, "Iteration 2: 15 rows")
	assert.Contains(t, output, "rows/s")
	assert.NotContains(t, output, "%")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")), "finish should print newline")
}

func TestProgressTracker_EmptyIterationsAreQuiet(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf)

	tracker.Start()
	tracker.Iteration(0)
	assert.Empty(t, buf.String())

	tracker.Iteration(3)
	tracker.Iteration(0)
	assert.Contains(t, buf.String(), "Iteration 2: 3 rows")
	assert.NotContains(t, buf.String(), "Iteration 3")

	tracker.Finish()
	assert.Contains(t, buf.String(), "Iteration 3: 3 rows")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf)

	// Should not panic when not started
	tracker.Iteration(10)
	tracker.Finish()

	assert.Equal(t, "", buf.String(), "should have no output when not started")
	assert.Zero(t, tracker.Elapsed())
}
