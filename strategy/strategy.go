// Package strategy defines the narrow contract between the engine and
// user-supplied trading strategies. Strategies read state and submit orders
// exclusively through Context; they never touch engine internals.
package strategy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openquant/backtester/market"
	"github.com/openquant/backtester/orders"
	"github.com/openquant/backtester/portfolio"
)

// Params is a read-only configuration map of recognized strategy parameters.
type Params map[string]float64

// Get returns the parameter value, or def when absent.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// OrderResult is the synchronous outcome of an order call. Expected business
// conditions (bad quantity, insufficient funds) come back as an ErrorKind,
// never as a panic, so strategies can branch on them.
type OrderResult struct {
	OrderID string
	Err     orders.ErrorKind
}

// OK reports whether the order was accepted.
func (r OrderResult) OK() bool { return r.Err == orders.NoError }

// Context is the only API a strategy callback sees. All read accessors
// return snapshots as of the current tick; future data is unreachable.
// Order calls are the only mutation path into the engine.
type Context interface {
	// Klines returns the last n bars for symbol up to the current tick.
	Klines(symbol string, n int) ([]market.Bar, error)

	// Position returns the current position for symbol, if one exists.
	Position(symbol string) (portfolio.Position, bool)

	// Account returns an account snapshot as of the current tick.
	Account() portfolio.AccountState

	// Symbols returns the symbols configured for this run.
	Symbols() []string

	// Params returns the strategy parameter map.
	Params() Params

	// Tick returns the current tick index; Now its simulated time.
	Tick() int
	Now() time.Time

	OrderMarket(symbol string, side orders.Side, qty decimal.Decimal) OrderResult
	OrderLimit(symbol string, side orders.Side, qty, limit decimal.Decimal) OrderResult
	OrderStop(symbol string, side orders.Side, qty, stop decimal.Decimal) OrderResult
	CancelOrder(orderID string) OrderResult
}

// Strategy is the capability set a backtest run drives. Initialize runs once
// before the first tick; HandleBar once per tick with that tick's bars.
// Symbols missing at a tick are absent from bars, so implementations must
// check for presence.
type Strategy interface {
	Initialize(ctx Context) error
	HandleBar(ctx Context, bars market.TickBars) error
}

// Factory builds a strategy from its parameters.
type Factory func(p Params) (Strategy, error)

var registry = make(map[string]Factory)

// Register adds a strategy factory under a name. Later registrations win.
func Register(name string, f Factory) {
	registry[strings.ToLower(name)] = f
}

// New builds a registered strategy by name.
func New(name string, p Params) (Strategy, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f(p)
}

// Names lists registered strategy names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
