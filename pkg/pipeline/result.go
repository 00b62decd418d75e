// Package pipeline contains the per-run extraction machinery: the strategy
// registry dispatched by bot type, the upsert engine, and the run result
// bookkeeping shared with the executor.
package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Result aggregates the record counters for one extraction run
type Result struct {
	// Fetched counts records that passed normalization and entered the
	// resolution pipeline
	Fetched int
	// Inserted counts newly created member rows
	Inserted int
	// Updated counts overwritten member rows
	Updated int
	// Skipped counts records discarded with a logged reason (undeclared
	// results, update-only sources without a stored row)
	Skipped int
	// Failed counts records that errored during normalization or writing
	Failed int
	// Linked counts records resolved to a canonical constituency
	Linked int
	// Unmatched counts records upserted without a constituency link
	Unmatched int
}

// Summary renders the counters as a single log-friendly line
func (r *Result) Summary() string {
	return fmt.Sprintf("fetched=%d inserted=%d updated=%d skipped=%d failed=%d linked=%d unmatched=%d",
		r.Fetched, r.Inserted, r.Updated, r.Skipped, r.Failed, r.Linked, r.Unmatched)
}

// RunLog accumulates the human-readable trace of one run. Lines are
// timestamped on append; the final text is flushed into the BotRun row when
// the run finalizes. Append-only.
type RunLog struct {
	mu sync.Mutex
	b  strings.Builder
}

// Appendf adds one formatted, timestamped line to the log
func (l *RunLog) Appendf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.b.WriteString(time.Now().UTC().Format(time.RFC3339))
	l.b.WriteString(" ")
	fmt.Fprintf(&l.b, format, args...)
	l.b.WriteString("\n")
}

// String returns the accumulated log text
func (l *RunLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}
