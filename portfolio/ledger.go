// Package portfolio applies fills to cash and positions and marks the book
// to market. The accounting invariant cash + sum(market value) == equity
// holds exactly at every tick because all arithmetic is decimal.
package portfolio

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openquant/backtester/market"
	"github.com/openquant/backtester/orders"
)

// ErrInsufficientFunds means an order's worst-case cost exceeds available cash.
var ErrInsufficientFunds = errors.New("portfolio: insufficient buying power")

// Position is the signed holding for one symbol. Qty < 0 is short.
// AvgCost is the weighted-average entry; realized P&L is booked against it
// on decreases. Qty may return to zero without the position being deleted,
// so realized history survives round trips.
type Position struct {
	Symbol        string
	Qty           decimal.Decimal
	AvgCost       decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	LastPrice     decimal.Decimal
}

// MarketValue is the signed value of the holding at the last known price.
func (p Position) MarketValue() decimal.Decimal {
	return p.Qty.Mul(p.LastPrice)
}

// AccountState is an immutable ledger snapshot. One per tick forms the
// equity curve.
type AccountState struct {
	Tick        int
	Time        time.Time
	Cash        decimal.Decimal
	MarketValue decimal.Decimal
	Equity      decimal.Decimal
	Positions   map[string]Position
}

// Ledger is per-run portfolio state. Not safe for concurrent use; a run's
// tick loop is strictly sequential.
type Ledger struct {
	cash      decimal.Decimal
	positions map[string]*Position
	lastPrice map[string]decimal.Decimal
}

func NewLedger(initialCapital decimal.Decimal) *Ledger {
	return &Ledger{
		cash:      initialCapital,
		positions: make(map[string]*Position),
		lastPrice: make(map[string]decimal.Decimal),
	}
}

// ApplyFill books one fill: cash moves by notional plus commission, the
// position updates by weighted-average cost on increases and books realized
// P&L on decreases. Returns the realized P&L delta of this fill.
func (l *Ledger) ApplyFill(f orders.Fill) decimal.Decimal {
	notional := f.Price.Mul(f.Qty)
	if f.Side == orders.Buy {
		l.cash = l.cash.Sub(notional).Sub(f.Commission)
	} else {
		l.cash = l.cash.Add(notional).Sub(f.Commission)
	}

	p, ok := l.positions[f.Symbol]
	if !ok {
		p = &Position{Symbol: f.Symbol}
		l.positions[f.Symbol] = p
	}

	signed := f.Qty
	if f.Side == orders.Sell {
		signed = signed.Neg()
	}

	realized := decimal.Decimal{}

	switch {
	case p.Qty.IsZero() || p.Qty.Sign() == signed.Sign():
		// Same-direction increase: weighted-average cost.
		oldAbs := p.Qty.Abs()
		newAbs := oldAbs.Add(f.Qty)
		p.AvgCost = p.AvgCost.Mul(oldAbs).Add(f.Price.Mul(f.Qty)).Div(newAbs)
		p.Qty = p.Qty.Add(signed)

	default:
		// Decrease, close, or flip: realize against avg cost basis.
		closeQty := decimal.Min(f.Qty, p.Qty.Abs())
		if p.Qty.Sign() > 0 {
			realized = f.Price.Sub(p.AvgCost).Mul(closeQty)
		} else {
			realized = p.AvgCost.Sub(f.Price).Mul(closeQty)
		}
		p.RealizedPnL = p.RealizedPnL.Add(realized)

		oldSign := p.Qty.Sign()
		p.Qty = p.Qty.Add(signed)
		if p.Qty.Sign() != 0 && p.Qty.Sign() != oldSign {
			// Flipped through zero: the remainder opened at the fill price.
			p.AvgCost = f.Price
		}
	}

	p.LastPrice = f.Price
	l.lastPrice[f.Symbol] = f.Price
	if p.Qty.IsZero() {
		p.UnrealizedPnL = decimal.Decimal{}
	} else {
		p.UnrealizedPnL = p.LastPrice.Sub(p.AvgCost).Mul(p.Qty)
	}

	return realized
}

// MarkToMarket revalues all positions with the latest known price per
// symbol. A symbol absent from this tick's bars keeps its last seen price.
func (l *Ledger) MarkToMarket(bars market.TickBars) {
	for sym, b := range bars {
		l.lastPrice[sym] = b.Close
	}

	for _, p := range l.positions {
		if px, ok := l.lastPrice[p.Symbol]; ok {
			p.LastPrice = px
		}
		if p.Qty.IsZero() {
			p.UnrealizedPnL = decimal.Decimal{}
			continue
		}
		p.UnrealizedPnL = p.LastPrice.Sub(p.AvgCost).Mul(p.Qty)
	}
}

// CheckBuyingPower fails fast when a buy's worst-case cost (price * qty plus
// commission) exceeds available cash. Sells are bounded by the position
// limit check, not cash.
func (l *Ledger) CheckBuyingPower(side orders.Side, qty, worstPrice, commissionRate decimal.Decimal) error {
	if side != orders.Buy {
		return nil
	}
	cost := worstPrice.Mul(qty)
	cost = cost.Add(cost.Mul(commissionRate))
	if cost.GreaterThan(l.cash) {
		return ErrInsufficientFunds
	}
	return nil
}

// Cash returns available cash.
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// MarketValue returns the signed sum of all position values.
func (l *Ledger) MarketValue() decimal.Decimal {
	mv := decimal.Decimal{}
	for _, p := range l.positions {
		mv = mv.Add(p.MarketValue())
	}
	return mv
}

// Equity is cash plus market value.
func (l *Ledger) Equity() decimal.Decimal {
	return l.cash.Add(l.MarketValue())
}

// LastPrice returns the latest known price for a symbol, if any.
func (l *Ledger) LastPrice(symbol string) (decimal.Decimal, bool) {
	px, ok := l.lastPrice[symbol]
	return px, ok
}

// Position returns a copy of the position for symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Snapshot returns an immutable account state for the equity curve.
func (l *Ledger) Snapshot(tick int, t time.Time) AccountState {
	pos := make(map[string]Position, len(l.positions))
	for sym, p := range l.positions {
		pos[sym] = *p
	}
	mv := l.MarketValue()
	return AccountState{
		Tick:        tick,
		Time:        t,
		Cash:        l.cash,
		MarketValue: mv,
		Equity:      l.cash.Add(mv),
		Positions:   pos,
	}
}
