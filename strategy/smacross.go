package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openquant/backtester/indicators"
	"github.com/openquant/backtester/market"
	"github.com/openquant/backtester/orders"
)

// SMACross trades a fast/slow simple-moving-average crossover on the first
// configured symbol: buy when fast crosses above slow, flatten when it
// crosses back below.
//
// Params:
//
//	fast - fast SMA period (default 10)
//	slow - slow SMA period (default 30)
//	qty  - shares per entry (default 1)
type SMACross struct {
	fast *indicators.SMA
	slow *indicators.SMA
	qty  decimal.Decimal

	wasAbove bool
	ready    bool
}

func NewSMACross(p Params) (Strategy, error) {
	fast := int(p.Get("fast", 10))
	slow := int(p.Get("slow", 30))
	if fast <= 0 || slow <= 0 || fast >= slow {
		return nil, fmt.Errorf("smacross: need 0 < fast < slow, got fast=%d slow=%d", fast, slow)
	}
	return &SMACross{
		fast: indicators.NewSMA(fast),
		slow: indicators.NewSMA(slow),
		qty:  decimal.NewFromFloat(p.Get("qty", 1)),
	}, nil
}

func (s *SMACross) Initialize(ctx Context) error {
	s.fast.Reset()
	s.slow.Reset()
	s.wasAbove = false
	s.ready = false
	return nil
}

func (s *SMACross) HandleBar(ctx Context, bars market.TickBars) error {
	sym := ctx.Symbols()[0]
	bar, ok := bars[sym]
	if !ok {
		return nil
	}

	s.fast.Update(bar)
	s.slow.Update(bar)
	if !s.slow.Ready() {
		return nil
	}

	above := s.fast.Value().GreaterThan(s.slow.Value())
	defer func() {
		s.wasAbove = above
		s.ready = true
	}()

	// First readable value just records state; no trade on warmup.
	if !s.ready {
		return nil
	}

	pos, havePos := ctx.Position(sym)
	flat := !havePos || pos.Qty.IsZero()

	switch {
	case above && !s.wasAbove && flat:
		ctx.OrderMarket(sym, orders.Buy, s.qty)
	case !above && s.wasAbove && !flat && pos.Qty.Sign() > 0:
		ctx.OrderMarket(sym, orders.Sell, pos.Qty)
	}
	return nil
}

func init() {
	Register("smacross", NewSMACross)
}
