package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/openquant/backtester/market"
)

var tickTime = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newExec(t *testing.T, commission, slippageBPS string) *Executor {
	t.Helper()
	return NewExecutor(dec(commission), dec(slippageBPS), FillExact)
}

func ohlc(sym string, o, h, l, c string) market.TickBars {
	return market.TickBars{sym: market.Bar{
		Symbol: sym,
		Time:   tickTime,
		Open:   dec(o),
		High:   dec(h),
		Low:    dec(l),
		Close:  dec(c),
	}}
}

func TestSubmitValidation(t *testing.T) {
	e := newExec(t, "0", "0")

	tests := []struct {
		name string
		req  Request
		want ErrorKind
	}{
		{"ok market", Request{Symbol: "AAA", Side: Buy, Type: Market, Qty: dec("1")}, NoError},
		{"no symbol", Request{Side: Buy, Type: Market, Qty: dec("1")}, BadSymbol},
		{"zero qty", Request{Symbol: "AAA", Side: Buy, Type: Market, Qty: dec("0")}, BadQuantity},
		{"negative qty", Request{Symbol: "AAA", Side: Sell, Type: Market, Qty: dec("-5")}, BadQuantity},
		{"limit without price", Request{Symbol: "AAA", Side: Buy, Type: Limit, Qty: dec("1")}, BadPrice},
		{"stop without price", Request{Symbol: "AAA", Side: Sell, Type: Stop, Qty: dec("1")}, BadPrice},
		{"ok limit", Request{Symbol: "AAA", Side: Buy, Type: Limit, Qty: dec("1"), LimitPrice: dec("9")}, NoError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, kind := e.Submit(tt.req)
			assert.Equal(t, tt.want, kind)
		})
	}
}

// Market fill arithmetic: BUY 10 at next bar open 100 with 1bp
// slippage and 0.0003 commission fills at 100.01 and costs 0.30003.
func TestMarketFillSlippageAndCommission(t *testing.T) {
	e := newExec(t, "0.0003", "1")

	e.Process(0, tickTime, nil) // establish tick 0
	o, kind := e.Submit(Request{Symbol: "AAA", Side: Buy, Type: Market, Qty: dec("10")})
	assert.Equal(t, NoError, kind)

	fills := e.Process(1, tickTime, ohlc("AAA", "100", "101", "99", "100.5"))
	assert.Len(t, fills, 1)

	f := fills[0]
	assert.Equal(t, o.ID, f.OrderID)
	assert.True(t, f.Price.Equal(dec("100.01")), "got %s", f.Price)
	assert.True(t, f.Commission.Equal(dec("0.30003")), "got %s", f.Commission)

	got, _ := e.Order(o.ID)
	assert.Equal(t, Filled, got.Status)
	assert.True(t, got.AvgFillPrice.Equal(dec("100.01")))
}

func TestMarketSellReceivesDown(t *testing.T) {
	e := newExec(t, "0", "1")

	e.Process(0, tickTime, nil)
	e.Submit(Request{Symbol: "AAA", Side: Sell, Type: Market, Qty: dec("10")})

	fills := e.Process(1, tickTime, ohlc("AAA", "100", "101", "99", "100.5"))
	assert.Len(t, fills, 1)
	assert.True(t, fills[0].Price.Equal(dec("99.99")), "got %s", fills[0].Price)
}

// An order submitted at tick t never fills against the bar at tick t.
func TestNoFillOnSubmissionTick(t *testing.T) {
	e := newExec(t, "0", "0")

	e.Process(1, tickTime, ohlc("AAA", "100", "101", "99", "100"))
	e.Submit(Request{Symbol: "AAA", Side: Buy, Type: Market, Qty: dec("1")})

	// Reprocessing the same tick index must not fill the new order.
	fills := e.Process(1, tickTime, ohlc("AAA", "100", "101", "99", "100"))
	assert.Empty(t, fills)

	fills = e.Process(2, tickTime, ohlc("AAA", "102", "103", "101", "102"))
	assert.Len(t, fills, 1)
	assert.True(t, fills[0].Price.Equal(dec("102")), "fills at the later bar open")
}

// Limit matching: BUY limit 95 skips a [96,98] bar and fills at
// exactly 95 on the first bar whose range contains it.
func TestLimitFillsAtExactPrice(t *testing.T) {
	e := newExec(t, "0", "5") // slippage must NOT apply to limit fills

	e.Process(0, tickTime, nil)
	e.Submit(Request{Symbol: "AAA", Side: Buy, Type: Limit, Qty: dec("10"), LimitPrice: dec("95")})

	fills := e.Process(1, tickTime, ohlc("AAA", "97", "98", "96", "97"))
	assert.Empty(t, fills, "range [96,98] does not contain 95")

	fills = e.Process(2, tickTime, ohlc("AAA", "95.5", "96", "94", "95"))
	assert.Len(t, fills, 1)
	assert.True(t, fills[0].Price.Equal(dec("95")), "no price improvement, got %s", fills[0].Price)
	assert.Equal(t, 2, fills[0].Tick)
}

func TestStopTriggersOnRangeCross(t *testing.T) {
	e := newExec(t, "0", "1")

	e.Process(0, tickTime, nil)
	// Sell stop below the market.
	e.Submit(Request{Symbol: "AAA", Side: Sell, Type: Stop, Qty: dec("10"), StopPrice: dec("90")})

	fills := e.Process(1, tickTime, ohlc("AAA", "95", "96", "91", "95"))
	assert.Empty(t, fills, "low 91 has not crossed 90")

	fills = e.Process(2, tickTime, ohlc("AAA", "91", "92", "89", "90"))
	assert.Len(t, fills, 1)
	// Executes at stop price adjusted by slippage on the triggering bar.
	assert.True(t, fills[0].Price.Equal(dec("89.991")), "got %s", fills[0].Price)
	assert.Equal(t, 2, fills[0].Tick)
}

func TestBuyStopTrigger(t *testing.T) {
	e := newExec(t, "0", "0")

	e.Process(0, tickTime, nil)
	e.Submit(Request{Symbol: "AAA", Side: Buy, Type: Stop, Qty: dec("1"), StopPrice: dec("105")})

	fills := e.Process(1, tickTime, ohlc("AAA", "100", "104", "99", "103"))
	assert.Empty(t, fills)

	fills = e.Process(2, tickTime, ohlc("AAA", "104", "106", "103", "105.5"))
	assert.Len(t, fills, 1)
	assert.True(t, fills[0].Price.Equal(dec("105")))
}

func TestCancelLifecycle(t *testing.T) {
	e := newExec(t, "0", "0")

	e.Process(0, tickTime, nil)
	o, _ := e.Submit(Request{Symbol: "AAA", Side: Buy, Type: Limit, Qty: dec("1"), LimitPrice: dec("95")})

	assert.Equal(t, NoError, e.Cancel(o.ID))
	got, _ := e.Order(o.ID)
	assert.Equal(t, Cancelled, got.Status)

	// Terminal states are immutable: cancelling again fails, and the order
	// never matches afterwards.
	assert.Equal(t, NotCancellable, e.Cancel(o.ID))
	fills := e.Process(1, tickTime, ohlc("AAA", "95", "95", "95", "95"))
	assert.Empty(t, fills)

	assert.Equal(t, UnknownOrder, e.Cancel("no-such-order"))
}

func TestCancelFilledOrder(t *testing.T) {
	e := newExec(t, "0", "0")

	e.Process(0, tickTime, nil)
	o, _ := e.Submit(Request{Symbol: "AAA", Side: Buy, Type: Market, Qty: dec("1")})
	e.Process(1, tickTime, ohlc("AAA", "100", "100", "100", "100"))

	assert.Equal(t, NotCancellable, e.Cancel(o.ID))
}

// Identical (order stream, bar stream) inputs produce identical fills.
func TestDeterministicMatching(t *testing.T) {
	runOnce := func() []Fill {
		e := newExec(t, "0.0003", "2")
		e.Process(0, tickTime, nil)
		e.Submit(Request{Symbol: "AAA", Side: Buy, Type: Market, Qty: dec("10")})
		e.Submit(Request{Symbol: "AAA", Side: Buy, Type: Limit, Qty: dec("5"), LimitPrice: dec("99")})
		e.Submit(Request{Symbol: "AAA", Side: Sell, Type: Stop, Qty: dec("10"), StopPrice: dec("98")})

		var fills []Fill
		closes := [][4]string{
			{"100", "101", "99.5", "100"},
			{"100", "100.5", "98.5", "99"},
			{"99", "99.5", "97.5", "98"},
		}
		for i, c := range closes {
			fills = append(fills, e.Process(i+1, tickTime, ohlc("AAA", c[0], c[1], c[2], c[3]))...)
		}
		return fills
	}

	a := runOnce()
	b := runOnce()

	assert.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Symbol, b[i].Symbol)
		assert.Equal(t, a[i].Tick, b[i].Tick)
		assert.True(t, a[i].Price.Equal(b[i].Price))
		assert.True(t, a[i].Qty.Equal(b[i].Qty))
		assert.True(t, a[i].Commission.Equal(b[i].Commission))
	}
}

func TestRejectKeepsAuditTrail(t *testing.T) {
	e := newExec(t, "0", "0")

	o := e.Reject(Request{Symbol: "AAA", Side: Buy, Type: Market, Qty: dec("1000000")}, InsufficientFunds)
	got, ok := e.Order(o.ID)
	assert.True(t, ok)
	assert.Equal(t, Rejected, got.Status)
	assert.Equal(t, NotCancellable, e.Cancel(o.ID))
}
