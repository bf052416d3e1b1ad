// Package journal records backtest output (run summaries, trade records,
// equity curves) for external analytics and reporting.
package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunRecord mirrors the backtest_runs table.
type RunRecord struct {
	RunID     string
	Created   time.Time
	Strategy  string
	Symbols   string // comma-joined
	Frequency string
	Start     time.Time
	End       time.Time
	Status    string

	StartBalance decimal.Decimal
	EndBalance   decimal.Decimal
	NetPL        decimal.Decimal

	ReturnPct    float64
	MaxDDPct     float64
	WinRate      float64
	ProfitFactor float64

	Trades int
	Wins   int
	Losses int

	ErrKind string
	ErrMsg  string
}

// FillRecord is one execution event belonging to a run.
type FillRecord struct {
	RunID      string
	OrderID    string
	Symbol     string
	Side       string
	Qty        decimal.Decimal
	Price      decimal.Decimal
	Commission decimal.Decimal
	Tick       int
	Time       time.Time
}

// EquityRecord is one point on a run's equity curve.
type EquityRecord struct {
	RunID       string
	Tick        int
	Time        time.Time
	Cash        decimal.Decimal
	MarketValue decimal.Decimal
	Equity      decimal.Decimal
}

type Journal interface {
	RecordRun(RunRecord) error
	RecordFill(FillRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}
