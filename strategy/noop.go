package strategy

import "github.com/openquant/backtester/market"

// Noop does nothing. Useful as a baseline: a run with it should end with
// equity exactly equal to initial capital.
type Noop struct{}

func (Noop) Initialize(ctx Context) error                      { return nil }
func (Noop) HandleBar(ctx Context, bars market.TickBars) error { return nil }

func init() {
	Register("noop", func(Params) (Strategy, error) { return Noop{}, nil })
}
