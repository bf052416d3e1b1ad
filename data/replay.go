package data

import (
	"fmt"
	"time"

	"github.com/openquant/backtester/market"
)

// Replay iterates a Dataset as a finite, non-restartable sequence of ticks.
// Each tick maps symbol -> Bar; symbols with no bar at a tick are absent.
//
// Cursors only ever move forward, so Klines never rescans history and every
// query is point-in-time: bars after the current tick are unreachable.
type Replay struct {
	d       *Dataset
	next    int            // next tick index to emit
	cursors map[string]int // bars emitted so far per symbol
}

// Next advances to the next tick and returns its time and bars.
// Returns ok=false once the dataset is exhausted.
func (r *Replay) Next() (time.Time, market.TickBars, bool) {
	if r.next >= len(r.d.ticks) {
		return time.Time{}, nil, false
	}

	t := r.d.ticks[r.next]
	bars := make(market.TickBars)
	for _, sym := range r.d.Symbols {
		s := r.d.series[sym]
		c := r.cursors[sym]
		if c < len(s) && s[c].Time.Equal(t) {
			bars[sym] = s[c]
			r.cursors[sym] = c + 1
		}
	}

	r.next++
	return t, bars, true
}

// Tick returns the index of the current tick (the one most recently emitted
// by Next), or -1 before the first call.
func (r *Replay) Tick() int { return r.next - 1 }

// Remaining returns the number of ticks not yet emitted.
func (r *Replay) Remaining() int { return len(r.d.ticks) - r.next }

// Klines returns the last n bars for symbol up to and including the current
// tick. O(1) amortized: it slices behind the symbol's cursor.
func (r *Replay) Klines(symbol string, n int) ([]market.Bar, error) {
	s, ok := r.d.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if n <= 0 {
		return nil, fmt.Errorf("klines %s: n must be positive, got %d", symbol, n)
	}

	c := r.cursors[symbol]
	if n > c {
		return nil, fmt.Errorf("klines %s: want %d bars, have %d: %w", symbol, n, c, ErrDataGap)
	}

	out := make([]market.Bar, n)
	copy(out, s[c-n:c])
	return out, nil
}
