package data

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openquant/backtester/market"
)

// Dataset is an immutable collection of per-symbol bar series over a common
// date range. It is published once by Load and never mutated, so it can be
// shared read-only across concurrent runs; per-run iteration state lives in
// Replay cursors, not here.
type Dataset struct {
	Symbols []string
	Freq    market.Frequency
	Start   time.Time
	End     time.Time

	series map[string][]market.Bar
	ticks  []time.Time // union of bar timestamps, ascending
}

// Load queries src for every symbol and builds the merged tick timeline.
// A symbol with no bars in the range is a fatal pre-run error.
func Load(ctx context.Context, src Source, symbols []string, start, end time.Time, freq market.Frequency) (*Dataset, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("load dataset: no symbols: %w", ErrDataUnavailable)
	}

	d := &Dataset{
		Symbols: append([]string(nil), symbols...),
		Freq:    freq,
		Start:   start,
		End:     end,
		series:  make(map[string][]market.Bar, len(symbols)),
	}

	seen := make(map[time.Time]struct{})

	for _, sym := range symbols {
		bars, err := src.Query(ctx, sym, start, end, freq)
		if err != nil {
			return nil, fmt.Errorf("load dataset %s: %w", sym, err)
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("load dataset %s [%s, %s): %w",
				sym, start.Format(time.RFC3339), end.Format(time.RFC3339), ErrDataUnavailable)
		}

		prev := time.Time{}
		for i, b := range bars {
			if b.Symbol != sym {
				return nil, fmt.Errorf("load dataset %s: bar %d has symbol %q", sym, i, b.Symbol)
			}
			if !b.Time.After(prev) {
				return nil, fmt.Errorf("load dataset %s: timestamps not strictly increasing at %d", sym, i)
			}
			prev = b.Time
			if _, ok := seen[b.Time]; !ok {
				seen[b.Time] = struct{}{}
				d.ticks = append(d.ticks, b.Time)
			}
		}
		d.series[sym] = bars
	}

	sort.Slice(d.ticks, func(i, j int) bool { return d.ticks[i].Before(d.ticks[j]) })

	return d, nil
}

// Ticks returns the number of ticks in the merged timeline.
func (d *Dataset) Ticks() int { return len(d.ticks) }

// Series returns the full bar series for a symbol. Intended for analytics
// after a run, not for strategies (which must go through Replay.Klines).
func (d *Dataset) Series(symbol string) ([]market.Bar, error) {
	s, ok := d.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return s, nil
}

// Replay returns a fresh iterator over the dataset with private cursors.
func (d *Dataset) Replay() *Replay {
	return &Replay{
		d:       d,
		cursors: make(map[string]int, len(d.Symbols)),
	}
}
