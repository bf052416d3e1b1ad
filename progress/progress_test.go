package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotPercent(t *testing.T) {
	tr := NewTracker(200)

	for i := 0; i < 50; i++ {
		tr.Step()
	}

	s := tr.Snapshot()
	assert.Equal(t, 50, s.Processed)
	assert.Equal(t, 200, s.Total)
	assert.InDelta(t, 25.0, s.Percent, 1e-9)
	assert.GreaterOrEqual(t, s.ETASeconds, 0.0)
}

func TestETAEstimatesRemaining(t *testing.T) {
	tr := NewTracker(10)

	tr.Step()
	tr.Step()

	s := tr.Snapshot()
	// 8 ticks left at some positive smoothed rate.
	assert.GreaterOrEqual(t, s.ETASeconds, 0.0)

	for i := 0; i < 8; i++ {
		tr.Step()
	}
	s = tr.Snapshot()
	assert.Equal(t, 0.0, s.ETASeconds, "nothing remaining")
	assert.InDelta(t, 100.0, s.Percent, 1e-9)
}

func TestCancelIsCooperative(t *testing.T) {
	tr := NewTracker(10)
	assert.False(t, tr.Cancelled())

	tr.Cancel()
	assert.True(t, tr.Cancelled())

	// Cancelling does not stop Step from being called; the loop decides.
	tr.Step()
	assert.Equal(t, 1, tr.Snapshot().Processed)
}
