package backtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openquant/backtester/metrics"
	"github.com/openquant/backtester/progress"
)

// Manager executes independent runs concurrently under a bounded worker
// pool. Runs never share mutable state (datasets are immutable and cursors
// are per-run), so the bound is purely a capacity knob.
type Manager struct {
	sem     chan struct{}
	timeout time.Duration // 0 disables the wall-clock timeout

	mu   sync.Mutex
	runs map[string]*Run
	wg   sync.WaitGroup
}

// NewManager bounds concurrency to maxConcurrent and applies an optional
// per-run wall-clock timeout.
func NewManager(maxConcurrent int, timeout time.Duration) *Manager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Manager{
		sem:     make(chan struct{}, maxConcurrent),
		timeout: timeout,
		runs:    make(map[string]*Run),
	}
}

// Submit registers the run and executes it asynchronously once a worker
// slot is free.
func (m *Manager) Submit(r *Run) {
	m.mu.Lock()
	m.runs[r.ID] = r
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.sem <- struct{}{}
		defer func() { <-m.sem }()

		ctx := context.Background()
		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}

		metrics.ActiveRuns.Inc()
		started := time.Now()
		_ = r.Execute(ctx) // terminal state and error live on the run record
		metrics.ActiveRuns.Dec()

		metrics.RunDuration.Observe(time.Since(started).Seconds())
		metrics.RunsTotal.WithLabelValues(strings.ToLower(r.Status().String())).Inc()
		metrics.TicksProcessed.Add(float64(r.Progress().Processed))
	}()
}

// Run looks up a registered run by ID.
func (m *Manager) Run(runID string) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	return r, ok
}

// Cancel requests cooperative cancellation of a run.
func (m *Manager) Cancel(runID string) error {
	r, ok := m.Run(runID)
	if !ok {
		return fmt.Errorf("backtest: unknown run %q", runID)
	}
	r.Cancel()
	return nil
}

// Progress returns the progress snapshot for a run.
func (m *Manager) Progress(runID string) (progress.Snapshot, error) {
	r, ok := m.Run(runID)
	if !ok {
		return progress.Snapshot{}, fmt.Errorf("backtest: unknown run %q", runID)
	}
	return r.Progress(), nil
}

// Wait blocks until all submitted runs reach a terminal state.
func (m *Manager) Wait() { m.wg.Wait() }
