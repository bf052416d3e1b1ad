// Package backtest drives the deterministic tick loop: replayed bars feed
// order matching, portfolio accounting and the strategy callback, in a fixed
// per-tick order that makes look-ahead impossible.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openquant/backtester/config"
	"github.com/openquant/backtester/data"
	"github.com/openquant/backtester/internal/id"
	"github.com/openquant/backtester/market"
	"github.com/openquant/backtester/orders"
	"github.com/openquant/backtester/portfolio"
	"github.com/openquant/backtester/progress"
	"github.com/openquant/backtester/strategy"
)

// ErrStrategyContract means the run was handed something that is not a
// usable strategy. Checked again at run start even when an external
// validator vetted the strategy earlier.
var ErrStrategyContract = errors.New("backtest: strategy must provide Initialize and HandleBar")

// Status is the run lifecycle state.
type Status int8

const (
	Pending Status = iota
	Running
	Completed
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	case Cancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// Terminal reports whether the run can no longer change state.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// RunError is the short kind+message carried on a failed run record.
// No stack traces leave the engine.
type RunError struct {
	Kind string // "strategy", "data", "timeout"
	Msg  string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed (%s): %s", e.Kind, e.Msg)
}

// Run is one backtest: per-run engine state wired to a strategy. A Run is
// single-shot; Execute may be called once. All engine state is private to
// the run, so independent runs can execute concurrently while sharing the
// same immutable Dataset.
type Run struct {
	ID string

	cfg   *config.Config
	strat strategy.Strategy

	replay  *data.Replay
	exec    *orders.Executor
	ledger  *portfolio.Ledger
	tracker *progress.Tracker
	sctx    *runContext

	mu     sync.Mutex
	status Status
	runErr *RunError

	curTick int
	curTime time.Time

	equity []portfolio.AccountState
	fills  []orders.Fill

	trades, wins, losses int
	grossWin, grossLoss  decimal.Decimal

	protective map[string]bool     // order IDs attached by risk controls
	guards     map[string][]string // symbol -> working protective order IDs
}

// NewRun wires a run from a validated config, a loaded dataset and a
// strategy instance.
func NewRun(cfg *config.Config, ds *data.Dataset, strat strategy.Strategy) (*Run, error) {
	if cfg == nil {
		return nil, config.ErrInvalidConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, ErrStrategyContract
	}
	if ds == nil || ds.Ticks() == 0 {
		return nil, fmt.Errorf("backtest: empty dataset: %w", data.ErrDataUnavailable)
	}

	r := &Run{
		ID:         id.New(),
		cfg:        cfg,
		strat:      strat,
		replay:     ds.Replay(),
		exec:       orders.NewExecutor(cfg.CommissionRateDec(), cfg.SlippageBPSDec(), orders.FillExact),
		ledger:     portfolio.NewLedger(cfg.InitialCapitalDec()),
		tracker:    progress.NewTracker(ds.Ticks()),
		curTick:    -1,
		protective: make(map[string]bool),
		guards:     make(map[string][]string),
	}
	r.sctx = &runContext{run: r}
	return r, nil
}

// Status returns the current lifecycle state.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the run error for Failed runs, nil otherwise.
func (r *Run) Err() *RunError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runErr
}

// Progress returns a progress snapshot.
func (r *Run) Progress() progress.Snapshot { return r.tracker.Snapshot() }

// Cancel requests cooperative cancellation; it takes effect at the next
// tick boundary. Partial results are retained.
func (r *Run) Cancel() { r.tracker.Cancel() }

// EquityCurve returns the ordered per-tick account snapshots so far.
func (r *Run) EquityCurve() []portfolio.AccountState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]portfolio.AccountState(nil), r.equity...)
}

// Fills returns the ordered trade records so far.
func (r *Run) Fills() []orders.Fill {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]orders.Fill(nil), r.fills...)
}

// FinalState returns the last recorded account snapshot.
func (r *Run) FinalState() (portfolio.AccountState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.equity) == 0 {
		return portfolio.AccountState{}, false
	}
	return r.equity[len(r.equity)-1], true
}

// Execute drives the tick loop to a terminal state. It returns a non-nil
// error only for Failed runs; Completed and Cancelled return nil.
//
// Per tick, in strict order: mark to market, match working orders (orders
// submitted on prior ticks against current bars), strategy callback,
// account snapshot, progress/cancellation check.
func (r *Run) Execute(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}

	if err := r.callInitialize(); err != nil {
		return r.fail("strategy", err.Error())
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return r.fail("timeout", "wall-clock timeout exceeded")
			}
			r.finish(Cancelled)
			return nil
		default:
		}
		if r.tracker.Cancelled() {
			r.finish(Cancelled)
			return nil
		}

		t, bars, ok := r.replay.Next()
		if !ok {
			r.finish(Completed)
			return nil
		}

		r.mu.Lock()
		r.curTick++
		r.curTime = t
		tick := r.curTick
		r.mu.Unlock()

		r.ledger.MarkToMarket(bars)

		for _, f := range r.exec.Process(tick, t, bars) {
			r.applyFill(f)
		}

		if err := r.callHandleBar(bars); err != nil {
			// State accumulated so far is retained; no rollback.
			return r.fail("strategy", err.Error())
		}

		r.mu.Lock()
		r.equity = append(r.equity, r.ledger.Snapshot(tick, t))
		r.mu.Unlock()

		r.tracker.Step()
	}
}

func (r *Run) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != Pending {
		return fmt.Errorf("backtest: run %s already started (status %s)", r.ID, r.status)
	}
	r.status = Running
	return nil
}

func (r *Run) finish(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.Terminal() {
		r.status = s
	}
}

func (r *Run) fail(kind, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.Terminal() {
		r.status = Failed
		r.runErr = &RunError{Kind: kind, Msg: msg}
	}
	return r.runErr
}

// callInitialize and callHandleBar convert strategy panics into run-local
// failures; a broken strategy never crashes the host process.

func (r *Run) callInitialize() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in Initialize: %v", p)
		}
	}()
	return r.strat.Initialize(r.sctx)
}

func (r *Run) callHandleBar(bars market.TickBars) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in HandleBar: %v", p)
		}
	}()
	return r.strat.HandleBar(r.sctx, bars)
}

// applyFill books a fill, updates trade statistics and maintains protective
// orders configured via stop_loss_pct / take_profit_pct.
func (r *Run) applyFill(f orders.Fill) {
	posBefore, _ := r.ledger.Position(f.Symbol)
	realized := r.ledger.ApplyFill(f)
	posAfter, _ := r.ledger.Position(f.Symbol)

	r.mu.Lock()
	r.fills = append(r.fills, f)

	if posAfter.Qty.Abs().LessThan(posBefore.Qty.Abs()) {
		r.trades++
		switch realized.Sign() {
		case 1:
			r.wins++
			r.grossWin = r.grossWin.Add(realized)
		case -1:
			r.losses++
			r.grossLoss = r.grossLoss.Add(realized.Abs())
		}
	}

	isGuard := r.protective[f.OrderID]
	increased := posAfter.Qty.Abs().GreaterThan(posBefore.Qty.Abs())
	r.mu.Unlock()

	if increased && !isGuard {
		r.attachGuards(f, posAfter)
	}
	if posAfter.Qty.IsZero() {
		r.cancelGuards(f.Symbol)
	}
}

func pctOf(price decimal.Decimal, pct float64) decimal.Decimal {
	return price.Mul(decimal.NewFromFloat(pct))
}

// attachGuards submits the protective stop/limit orders for an entry fill.
func (r *Run) attachGuards(f orders.Fill, pos portfolio.Position) {
	long := pos.Qty.Sign() > 0
	exitSide := orders.Sell
	if !long {
		exitSide = orders.Buy
	}

	if r.cfg.StopLossPct > 0 {
		stop := f.Price.Sub(pctOf(f.Price, r.cfg.StopLossPct))
		if !long {
			stop = f.Price.Add(pctOf(f.Price, r.cfg.StopLossPct))
		}
		r.submitGuard(orders.Request{
			Symbol: f.Symbol, Side: exitSide, Type: orders.Stop,
			Qty: f.Qty, StopPrice: stop,
		})
	}

	if r.cfg.TakeProfitPct > 0 {
		limit := f.Price.Add(pctOf(f.Price, r.cfg.TakeProfitPct))
		if !long {
			limit = f.Price.Sub(pctOf(f.Price, r.cfg.TakeProfitPct))
		}
		r.submitGuard(orders.Request{
			Symbol: f.Symbol, Side: exitSide, Type: orders.Limit,
			Qty: f.Qty, LimitPrice: limit,
		})
	}
}

func (r *Run) submitGuard(req orders.Request) {
	o, kind := r.exec.Submit(req)
	if kind != orders.NoError {
		return
	}
	r.mu.Lock()
	r.protective[o.ID] = true
	r.guards[req.Symbol] = append(r.guards[req.Symbol], o.ID)
	r.mu.Unlock()
}

// cancelGuards drops remaining protective orders once a position is flat.
func (r *Run) cancelGuards(symbol string) {
	r.mu.Lock()
	ids := r.guards[symbol]
	delete(r.guards, symbol)
	r.mu.Unlock()

	for _, oid := range ids {
		r.exec.Cancel(oid) // terminal guards return NotCancellable; fine
	}
}
