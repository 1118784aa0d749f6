package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"igsync/pkg/acquisition"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker keeps track of a batch of acquisition runs
type StatusTracker struct {
	mu         sync.Mutex
	Total      int
	Synced     int
	Staged     int
	SyncFailed int
	Failed     int
	StartTime  time.Time
}

// NewStatusTracker creates a tracker for total runs
func NewStatusTracker(total int) *StatusTracker {
	return &StatusTracker{
		Total:     total,
		StartTime: time.Now(),
	}
}

// Record counts a finished run by its terminal state.
func (st *StatusTracker) Record(res *acquisition.Result) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if res == nil {
		st.Failed++
		return
	}
	switch res.State {
	case acquisition.StateSynced:
		st.Synced++
	case acquisition.StateStaged:
		st.Staged++
	case acquisition.StateSyncFailed:
		st.SyncFailed++
	default:
		st.Failed++
	}
}

// Done returns the number of finished runs
func (st *StatusTracker) Done() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.done()
}

func (st *StatusTracker) done() int {
	return st.Synced + st.Staged + st.SyncFailed + st.Failed
}

// GetProgressBar returns a formatted progress bar
func (st *StatusTracker) GetProgressBar() string {
	st.mu.Lock()
	defer st.mu.Unlock()

	const width = 20
	filled := 0
	if st.Total > 0 {
		filled = st.done() * width / st.Total
	}
	if filled > width {
		filled = width
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, st.done(), st.Total)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// PrintProgress prints the current progress status
func (st *StatusTracker) PrintProgress() {
	Printf("\r%s %s", Magenta("[ACQUIRING]"), st.GetProgressBar())
}

// PrintSummary prints the final counters.
func (st *StatusTracker) PrintSummary() {
	st.mu.Lock()
	defer st.mu.Unlock()

	Println()
	Printf("%s synced: %d | staged: %d | sync failed: %d | failed: %d | %s\n",
		Cyan("[SUMMARY]"),
		st.Synced, st.Staged, st.SyncFailed, st.Failed,
		time.Since(st.StartTime).Round(time.Millisecond))
}

// AllSucceeded reports whether every run reached a success state.
func (st *StatusTracker) AllSucceeded() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.Failed == 0 && st.SyncFailed == 0 && st.done() == st.Total
}
