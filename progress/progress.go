// Package progress tracks tick-loop completion and exposes the cooperative
// cancellation flag checked once per tick.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// emaPeriod smooths the per-tick duration estimate feeding the ETA.
const emaPeriod = 50

// Snapshot is a point-in-time view of run progress, suitable for pushing to
// an external channel. Transport is out of scope here.
type Snapshot struct {
	Processed  int
	Total      int
	Percent    float64
	ETASeconds float64
}

// Tracker counts processed ticks and estimates time remaining with an
// EMA-smoothed per-tick duration. Cancellation is cooperative: Cancel only
// raises a flag, which the tick loop observes at the next tick boundary.
type Tracker struct {
	total     int
	cancelled atomic.Bool

	mu        sync.Mutex
	processed int
	lastStep  time.Time
	emaStep   float64 // seconds per tick
}

func NewTracker(total int) *Tracker {
	return &Tracker{
		total:    total,
		lastStep: time.Now(),
	}
}

// Step records one completed tick.
func (t *Tracker) Step() {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	dt := now.Sub(t.lastStep).Seconds()
	t.lastStep = now

	if t.processed == 0 {
		t.emaStep = dt
	} else {
		k := 2.0 / float64(emaPeriod+1)
		t.emaStep = dt*k + t.emaStep*(1-k)
	}
	t.processed++
}

// Cancel raises the cooperative cancellation flag. Safe to call from any
// goroutine; takes effect within one tick.
func (t *Tracker) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether cancellation was requested.
func (t *Tracker) Cancelled() bool { return t.cancelled.Load() }

// Snapshot returns current progress.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		Processed: t.processed,
		Total:     t.total,
	}
	if t.total > 0 {
		s.Percent = 100 * float64(t.processed) / float64(t.total)
	}
	if remaining := t.total - t.processed; remaining > 0 {
		s.ETASeconds = float64(remaining) * t.emaStep
	}
	return s
}
