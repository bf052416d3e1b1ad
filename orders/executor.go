package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openquant/backtester/internal/id"
	"github.com/openquant/backtester/market"
)

// FillPolicy selects how limit and stop prices convert into execution prices.
type FillPolicy int

const (
	// FillExact executes at the exact limit/stop price with no price
	// improvement, full-or-nothing per tick.
	FillExact FillPolicy = iota

	// FillBarOpen grants the bar open when it already trades through the
	// limit price (gap handling); otherwise behaves like FillExact.
	FillBarOpen
)

var (
	bpsDivisor = decimal.NewFromInt(10_000)
	one        = decimal.NewFromInt(1)
)

// Request describes a new order to submit.
type Request struct {
	Symbol     string
	Side       Side
	Type       Type
	Qty        decimal.Decimal
	LimitPrice decimal.Decimal
	StopPrice  decimal.Decimal
}

// Executor owns all non-terminal orders and matches them against bars.
// It is per-run state and not safe for concurrent use; a run's tick loop is
// strictly sequential, which is what makes matching deterministic.
type Executor struct {
	commissionRate decimal.Decimal
	slippage       decimal.Decimal // fraction, e.g. 1bp = 0.0001
	policy         FillPolicy

	tick   int
	orders map[string]*Order
	queue  []string // working orders in submission sequence
}

// NewExecutor builds an executor. slippageBPS is in basis points.
func NewExecutor(commissionRate, slippageBPS decimal.Decimal, policy FillPolicy) *Executor {
	return &Executor{
		commissionRate: commissionRate,
		slippage:       slippageBPS.Div(bpsDivisor),
		policy:         policy,
		orders:         make(map[string]*Order),
	}
}

// Submit validates the request and enters it into the book as Working.
// The order is stamped with the current tick so it can never match a bar at
// or before its submission tick.
func (e *Executor) Submit(req Request) (Order, ErrorKind) {
	if kind := validate(req); kind != NoError {
		return Order{}, kind
	}

	o := &Order{
		ID:          id.New(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Qty:         req.Qty,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
		Status:      Working,
		CreatedTick: e.tick,
	}
	e.orders[o.ID] = o
	e.queue = append(e.queue, o.ID)

	return *o, NoError
}

// Reject records an order that failed a pre-trade check (buying power,
// position limit) as Rejected, keeping the audit trail complete.
func (e *Executor) Reject(req Request, kind ErrorKind) Order {
	o := &Order{
		ID:          id.New(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Qty:         req.Qty,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
		Status:      Rejected,
		CreatedTick: e.tick,
	}
	e.orders[o.ID] = o
	return *o
}

func validate(req Request) ErrorKind {
	if req.Symbol == "" {
		return BadSymbol
	}
	if req.Side != Buy && req.Side != Sell {
		return BadQuantity
	}
	if req.Qty.Sign() <= 0 {
		return BadQuantity
	}
	switch req.Type {
	case Limit:
		if req.LimitPrice.Sign() <= 0 {
			return BadPrice
		}
	case Stop:
		if req.StopPrice.Sign() <= 0 {
			return BadPrice
		}
	}
	return NoError
}

// Cancel cancels a non-terminal order. Only Working and PartiallyFilled
// orders are cancellable.
func (e *Executor) Cancel(orderID string) ErrorKind {
	o, ok := e.orders[orderID]
	if !ok {
		return UnknownOrder
	}
	if o.Status.Terminal() {
		return NotCancellable
	}
	o.Status = Cancelled
	return NoError
}

// Order returns a copy of an order by ID.
func (e *Executor) Order(orderID string) (Order, bool) {
	o, ok := e.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Working returns copies of all currently working orders, in submission order.
func (e *Executor) Working() []Order {
	var out []Order
	for _, oid := range e.queue {
		if o := e.orders[oid]; o.Status == Working {
			out = append(out, *o)
		}
	}
	return out
}

// Process evaluates working orders against the bars for the given tick and
// returns the fills, in submission order. Only orders submitted on a prior
// tick are eligible: a decision made at tick t can never fill on a bar <= t.
func (e *Executor) Process(tick int, now time.Time, bars market.TickBars) []Fill {
	e.tick = tick

	var fills []Fill
	keep := e.queue[:0]

	for _, oid := range e.queue {
		o := e.orders[oid]
		if o.Status != Working {
			continue // cancelled since last tick; drop from queue
		}

		bar, ok := bars[o.Symbol]
		if !ok || o.CreatedTick >= tick {
			keep = append(keep, oid)
			continue
		}

		price, match := e.matchPrice(o, bar)
		if !match {
			keep = append(keep, oid)
			continue
		}

		commission := price.Mul(o.Qty).Mul(e.commissionRate)

		o.FilledQty = o.Qty
		o.AvgFillPrice = price
		o.Status = Filled

		fills = append(fills, Fill{
			OrderID:    o.ID,
			Symbol:     o.Symbol,
			Side:       o.Side,
			Qty:        o.Qty,
			Price:      price,
			Commission: commission,
			Tick:       tick,
			Time:       now,
		})
	}

	e.queue = keep
	return fills
}

// matchPrice applies the matching rules for one order against one bar.
func (e *Executor) matchPrice(o *Order, bar market.Bar) (decimal.Decimal, bool) {
	switch o.Type {
	case Market:
		// First bar strictly after submission fills at its open,
		// adjusted by slippage: buys pay up, sells receive down.
		return e.slip(bar.Open, o.Side), true

	case Limit:
		if e.policy == FillBarOpen && gapsThrough(o, bar.Open) {
			return bar.Open, true
		}
		// Exact-price policy: fill at the limit price itself when the bar
		// range contains it. Full-or-nothing; no price improvement.
		if bar.Contains(o.LimitPrice) {
			return o.LimitPrice, true
		}
		return decimal.Decimal{}, false

	case Stop:
		// Trigger when the bar range crosses the stop; execute at the stop
		// price adjusted by slippage, on the triggering bar itself.
		triggered := false
		if o.Side == Buy {
			triggered = bar.High.GreaterThanOrEqual(o.StopPrice)
		} else {
			triggered = bar.Low.LessThanOrEqual(o.StopPrice)
		}
		if !triggered {
			return decimal.Decimal{}, false
		}
		return e.slip(o.StopPrice, o.Side), true
	}

	return decimal.Decimal{}, false
}

// gapsThrough reports whether the bar open already trades through the limit.
func gapsThrough(o *Order, open decimal.Decimal) bool {
	if o.Side == Buy {
		return open.LessThan(o.LimitPrice)
	}
	return open.GreaterThan(o.LimitPrice)
}

func (e *Executor) slip(price decimal.Decimal, side Side) decimal.Decimal {
	if e.slippage.IsZero() {
		return price
	}
	if side == Buy {
		return price.Mul(one.Add(e.slippage))
	}
	return price.Mul(one.Sub(e.slippage))
}
