package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openquant/backtester/portfolio"
)

// Result summarizes a terminal run for reporting and journaling.
type Result struct {
	RunID  string
	Status Status
	Error  *RunError
	Start  time.Time
	End    time.Time
	Ticks  int

	StartBalance decimal.Decimal
	EndBalance   decimal.Decimal
	NetPL        decimal.Decimal
	ReturnPct    float64
	MaxDDPct     float64

	Trades int
	Wins   int
	Losses int

	WinRate      float64
	ProfitFactor float64
}

// Result computes the summary from the state accumulated so far. Valid for
// cancelled and failed runs too, over their partial equity curves.
func (r *Run) Result() Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := Result{
		RunID:        r.ID,
		Status:       r.status,
		Error:        r.runErr,
		Ticks:        len(r.equity),
		StartBalance: r.cfg.InitialCapitalDec(),
		Trades:       r.trades,
		Wins:         r.wins,
		Losses:       r.losses,
	}

	res.EndBalance = res.StartBalance
	if n := len(r.equity); n > 0 {
		res.Start = r.equity[0].Time
		res.End = r.equity[n-1].Time
		res.EndBalance = r.equity[n-1].Equity
	}

	res.NetPL = res.EndBalance.Sub(res.StartBalance)
	if res.StartBalance.Sign() > 0 {
		ret, _ := res.NetPL.Div(res.StartBalance).Float64()
		res.ReturnPct = ret * 100
	}

	res.MaxDDPct = maxDrawdownPct(r.equity)

	if r.trades > 0 {
		res.WinRate = float64(r.wins) / float64(r.trades)
	}
	if r.grossLoss.Sign() > 0 {
		pf, _ := r.grossWin.Div(r.grossLoss).Float64()
		res.ProfitFactor = pf
	}

	return res
}

func maxDrawdownPct(curve []portfolio.AccountState) float64 {
	var peak, maxDD decimal.Decimal
	for _, s := range curve {
		if s.Equity.GreaterThan(peak) {
			peak = s.Equity
		}
		if peak.Sign() <= 0 {
			continue
		}
		dd := peak.Sub(s.Equity).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	out, _ := maxDD.Float64()
	return out * 100
}
