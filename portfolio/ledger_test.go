package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/openquant/backtester/market"
	"github.com/openquant/backtester/orders"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fill(sym string, side orders.Side, qty, price, commission string) orders.Fill {
	return orders.Fill{
		OrderID:    "o1",
		Symbol:     sym,
		Side:       side,
		Qty:        dec(qty),
		Price:      dec(price),
		Commission: dec(commission),
	}
}

func closeBars(sym, px string) market.TickBars {
	p := dec(px)
	return market.TickBars{sym: market.Bar{Symbol: sym, Open: p, High: p, Low: p, Close: p}}
}

func TestBuyMovesCashAndPosition(t *testing.T) {
	l := NewLedger(dec("10000"))

	l.ApplyFill(fill("AAA", orders.Buy, "10", "100.01", "0.30003"))

	assert.True(t, l.Cash().Equal(dec("8999.59997")), "10000 - 1000.1 - 0.30003, got %s", l.Cash())

	p, ok := l.Position("AAA")
	assert.True(t, ok)
	assert.True(t, p.Qty.Equal(dec("10")))
	assert.True(t, p.AvgCost.Equal(dec("100.01")))
}

func TestWeightedAverageCostOnIncrease(t *testing.T) {
	l := NewLedger(dec("100000"))

	l.ApplyFill(fill("AAA", orders.Buy, "10", "100", "0"))
	l.ApplyFill(fill("AAA", orders.Buy, "30", "110", "0"))

	p, _ := l.Position("AAA")
	assert.True(t, p.Qty.Equal(dec("40")))
	assert.True(t, p.AvgCost.Equal(dec("107.5")), "got %s", p.AvgCost)
}

func TestRealizedOnDecrease(t *testing.T) {
	l := NewLedger(dec("100000"))

	l.ApplyFill(fill("AAA", orders.Buy, "10", "100", "0"))
	realized := l.ApplyFill(fill("AAA", orders.Sell, "4", "110", "0"))

	assert.True(t, realized.Equal(dec("40")), "got %s", realized)

	p, _ := l.Position("AAA")
	assert.True(t, p.Qty.Equal(dec("6")))
	assert.True(t, p.AvgCost.Equal(dec("100")), "basis unchanged on decrease")
	assert.True(t, p.RealizedPnL.Equal(dec("40")))
}

func TestCloseToZeroKeepsHistory(t *testing.T) {
	l := NewLedger(dec("100000"))

	l.ApplyFill(fill("AAA", orders.Buy, "10", "100", "0"))
	l.ApplyFill(fill("AAA", orders.Sell, "10", "90", "0"))

	p, ok := l.Position("AAA")
	assert.True(t, ok, "zeroed positions are kept, not deleted")
	assert.True(t, p.Qty.IsZero())
	assert.True(t, p.RealizedPnL.Equal(dec("-100")))
	assert.True(t, p.UnrealizedPnL.IsZero())
}

func TestFlipThroughZero(t *testing.T) {
	l := NewLedger(dec("100000"))

	l.ApplyFill(fill("AAA", orders.Buy, "10", "100", "0"))
	realized := l.ApplyFill(fill("AAA", orders.Sell, "15", "110", "0"))

	// 10 closed at +10 each; 5 reopened short at 110.
	assert.True(t, realized.Equal(dec("100")))

	p, _ := l.Position("AAA")
	assert.True(t, p.Qty.Equal(dec("-5")))
	assert.True(t, p.AvgCost.Equal(dec("110")))
}

func TestShortRealized(t *testing.T) {
	l := NewLedger(dec("100000"))

	l.ApplyFill(fill("AAA", orders.Sell, "10", "100", "0"))
	realized := l.ApplyFill(fill("AAA", orders.Buy, "10", "95", "0"))

	assert.True(t, realized.Equal(dec("50")), "short profits when covering lower, got %s", realized)
}

func TestMarkToMarketCarriesForwardLastPrice(t *testing.T) {
	l := NewLedger(dec("100000"))
	l.ApplyFill(fill("AAA", orders.Buy, "10", "100", "0"))

	l.MarkToMarket(closeBars("AAA", "105"))
	p, _ := l.Position("AAA")
	assert.True(t, p.UnrealizedPnL.Equal(dec("50")))

	// AAA absent at this tick: valuation holds at the last seen price.
	l.MarkToMarket(market.TickBars{})
	p, _ = l.Position("AAA")
	assert.True(t, p.LastPrice.Equal(dec("105")))
	assert.True(t, p.UnrealizedPnL.Equal(dec("50")))
}

// cash + sum(market value) == equity, exactly, after any fill sequence.
func TestConservation(t *testing.T) {
	l := NewLedger(dec("1000000"))

	steps := []struct {
		f  orders.Fill
		px string
	}{
		{fill("AAA", orders.Buy, "100", "101", "3.03"), "101"},
		{fill("BBB", orders.Sell, "50", "20", "0.3"), "19"},
		{fill("AAA", orders.Sell, "40", "99", "1.2"), "99"},
		{fill("BBB", orders.Buy, "50", "18", "0.27"), "18"},
	}

	for _, s := range steps {
		l.ApplyFill(s.f)
		l.MarkToMarket(closeBars(s.f.Symbol, s.px))

		snap := l.Snapshot(0, time.Time{})
		sum := snap.Cash
		for _, p := range snap.Positions {
			sum = sum.Add(p.MarketValue())
		}
		assert.True(t, sum.Equal(snap.Equity), "cash+mv=%s equity=%s", sum, snap.Equity)
	}
}

func TestCheckBuyingPower(t *testing.T) {
	l := NewLedger(dec("1000"))

	err := l.CheckBuyingPower(orders.Buy, dec("9"), dec("100"), dec("0.001"))
	assert.NoError(t, err, "900.9 fits in 1000")

	err = l.CheckBuyingPower(orders.Buy, dec("10"), dec("100"), dec("0.001"))
	assert.ErrorIs(t, err, ErrInsufficientFunds, "1001 exceeds 1000")

	err = l.CheckBuyingPower(orders.Sell, dec("1000"), dec("100"), dec("0.001"))
	assert.NoError(t, err, "sells are not cash-bounded")
}

func TestSnapshotIsImmutable(t *testing.T) {
	l := NewLedger(dec("1000"))
	l.ApplyFill(fill("AAA", orders.Buy, "1", "100", "0"))

	snap := l.Snapshot(0, time.Time{})
	before := snap.Positions["AAA"].Qty

	l.ApplyFill(fill("AAA", orders.Buy, "1", "100", "0"))

	assert.True(t, snap.Positions["AAA"].Qty.Equal(before), "snapshot unaffected by later fills")
}
