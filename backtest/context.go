package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openquant/backtester/market"
	"github.com/openquant/backtester/orders"
	"github.com/openquant/backtester/portfolio"
	"github.com/openquant/backtester/strategy"
)

// runContext implements strategy.Context for one run. Every accessor is
// point-in-time: reads go through the replay cursors and the ledger, both of
// which only know data up to the current tick.
type runContext struct {
	run *Run
}

var _ strategy.Context = (*runContext)(nil)

func (c *runContext) Klines(symbol string, n int) ([]market.Bar, error) {
	return c.run.replay.Klines(symbol, n)
}

func (c *runContext) Position(symbol string) (portfolio.Position, bool) {
	return c.run.ledger.Position(symbol)
}

func (c *runContext) Account() portfolio.AccountState {
	c.run.mu.Lock()
	tick, t := c.run.curTick, c.run.curTime
	c.run.mu.Unlock()
	return c.run.ledger.Snapshot(tick, t)
}

func (c *runContext) Symbols() []string {
	return append([]string(nil), c.run.cfg.Symbols...)
}

func (c *runContext) Params() strategy.Params {
	out := make(strategy.Params, len(c.run.cfg.Strategy.Params))
	for k, v := range c.run.cfg.Strategy.Params {
		out[k] = v
	}
	return out
}

func (c *runContext) Tick() int {
	c.run.mu.Lock()
	defer c.run.mu.Unlock()
	return c.run.curTick
}

func (c *runContext) Now() time.Time {
	c.run.mu.Lock()
	defer c.run.mu.Unlock()
	return c.run.curTime
}

func (c *runContext) OrderMarket(symbol string, side orders.Side, qty decimal.Decimal) strategy.OrderResult {
	req := orders.Request{Symbol: symbol, Side: side, Type: orders.Market, Qty: qty}
	last, ok := c.run.ledger.LastPrice(symbol)
	if !ok {
		// No price seen yet for this symbol; nothing to check against and
		// nothing the executor could fill. Reject rather than queue blind.
		return c.reject(req, orders.BadSymbol)
	}
	return c.submit(req, c.worstMarket(last, side))
}

func (c *runContext) OrderLimit(symbol string, side orders.Side, qty, limit decimal.Decimal) strategy.OrderResult {
	req := orders.Request{Symbol: symbol, Side: side, Type: orders.Limit, Qty: qty, LimitPrice: limit}
	return c.submit(req, limit)
}

func (c *runContext) OrderStop(symbol string, side orders.Side, qty, stop decimal.Decimal) strategy.OrderResult {
	req := orders.Request{Symbol: symbol, Side: side, Type: orders.Stop, Qty: qty, StopPrice: stop}
	return c.submit(req, c.worstMarket(stop, side))
}

func (c *runContext) CancelOrder(orderID string) strategy.OrderResult {
	if kind := c.run.exec.Cancel(orderID); kind != orders.NoError {
		return strategy.OrderResult{OrderID: orderID, Err: kind}
	}
	return strategy.OrderResult{OrderID: orderID}
}

// worstMarket is the worst-case execution price for pre-trade checks:
// the reference price degraded by configured slippage.
func (c *runContext) worstMarket(ref decimal.Decimal, side orders.Side) decimal.Decimal {
	slip := c.run.cfg.SlippageBPSDec().Div(decimal.NewFromInt(10_000))
	adj := ref.Mul(slip)
	if side == orders.Buy {
		return ref.Add(adj)
	}
	return ref.Sub(adj)
}

// submit runs pre-trade checks and enters the order into the book. Failures
// are recorded as Rejected orders and returned as result values.
func (c *runContext) submit(req orders.Request, worstPrice decimal.Decimal) strategy.OrderResult {
	if worstPrice.Sign() <= 0 {
		return strategy.OrderResult{Err: orders.BadPrice}
	}

	if err := c.run.ledger.CheckBuyingPower(req.Side, req.Qty, worstPrice, c.run.cfg.CommissionRateDec()); err != nil {
		return c.reject(req, orders.InsufficientFunds)
	}

	if kind := c.checkPositionLimit(req, worstPrice); kind != orders.NoError {
		return c.reject(req, kind)
	}

	o, kind := c.run.exec.Submit(req)
	if kind != orders.NoError {
		return strategy.OrderResult{Err: kind}
	}
	return strategy.OrderResult{OrderID: o.ID}
}

func (c *runContext) reject(req orders.Request, kind orders.ErrorKind) strategy.OrderResult {
	o := c.run.exec.Reject(req, kind)
	return strategy.OrderResult{OrderID: o.ID, Err: kind}
}

// checkPositionLimit bounds the worst-case resulting notional for a symbol
// to max_position_pct of current equity. Zero disables the check.
func (c *runContext) checkPositionLimit(req orders.Request, worstPrice decimal.Decimal) orders.ErrorKind {
	maxPct := c.run.cfg.MaxPositionPct
	if maxPct <= 0 {
		return orders.NoError
	}

	signed := req.Qty
	if req.Side == orders.Sell {
		signed = signed.Neg()
	}
	qty := signed
	if pos, ok := c.run.ledger.Position(req.Symbol); ok {
		qty = pos.Qty.Add(signed)
	}

	notional := qty.Abs().Mul(worstPrice)
	limit := c.run.ledger.Equity().Mul(decimal.NewFromFloat(maxPct))
	if notional.GreaterThan(limit) {
		return orders.PositionLimit
	}
	return orders.NoError
}
