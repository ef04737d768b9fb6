// Package job provides the control handle shared between a transfer
// worker and whoever started it.
package job

import (
	"sync"

	"github.com/Ning0612/fsbridge/internal/domain"
)

// ProgressFunc receives the completed fraction of a job, in [0, 1]
type ProgressFunc func(fraction float64)

// Control carries the cancellation flag and progress callback of one job.
// The mutex guards the active flag only. A nil *Control is valid: it is
// always active and reports progress nowhere.
type Control struct {
	mu       sync.Mutex
	active   bool
	progress ProgressFunc
}

// New creates an active Control reporting to progress (may be nil)
func New(progress ProgressFunc) *Control {
	return &Control{
		active:   true,
		progress: progress,
	}
}

// Active reports whether the job should keep running
func (c *Control) Active() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Cancel clears the active flag. Workers notice at their next check.
func (c *Control) Cancel() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Err returns domain.ErrCanceled once the job has been canceled
func (c *Control) Err() error {
	if !c.Active() {
		return domain.ErrCanceled
	}
	return nil
}

// Progress reports the completed fraction. It runs the callback on the
// calling goroutine; callers must serialize their own UI updates.
func (c *Control) Progress(fraction float64) {
	if c == nil || c.progress == nil {
		return
	}
	switch {
	case fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	c.progress(fraction)
}

// Step reports done/total as a fraction and returns Err().
// Zero total reports completion.
func (c *Control) Step(done, total int64) error {
	if total <= 0 {
		c.Progress(1)
	} else {
		c.Progress(float64(done) / float64(total))
	}
	return c.Err()
}
