package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/openquant/backtester/market"
	"github.com/openquant/backtester/orders"
)

// BuyHold submits one market buy for the first configured symbol on the
// first tick where it has a bar, then holds to the end of the run.
//
// Params:
//
//	qty - shares to buy (default 1)
type BuyHold struct {
	qty    decimal.Decimal
	bought bool
}

func NewBuyHold(p Params) (Strategy, error) {
	return &BuyHold{
		qty: decimal.NewFromFloat(p.Get("qty", 1)),
	}, nil
}

func (s *BuyHold) Initialize(ctx Context) error {
	s.bought = false
	return nil
}

func (s *BuyHold) HandleBar(ctx Context, bars market.TickBars) error {
	if s.bought {
		return nil
	}
	sym := ctx.Symbols()[0]
	if _, ok := bars[sym]; !ok {
		return nil
	}
	if res := ctx.OrderMarket(sym, orders.Buy, s.qty); res.OK() {
		s.bought = true
	}
	return nil
}

func init() {
	Register("buyhold", NewBuyHold)
}
