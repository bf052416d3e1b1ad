package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO backtest_runs
		(run_id, created, strategy, symbols, frequency, start_time, end_time, status,
		 start_balance, end_balance, net_pl, return_pct, max_dd_pct, win_rate,
		 profit_factor, trades, wins, losses, err_kind, err_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, r.Symbols, r.Frequency, r.Start, r.End,
		r.Status, r.StartBalance.String(), r.EndBalance.String(), r.NetPL.String(),
		r.ReturnPct, r.MaxDDPct, r.WinRate, r.ProfitFactor,
		r.Trades, r.Wins, r.Losses, r.ErrKind, r.ErrMsg,
	)
	return err
}

func (j *SQLite) RecordFill(f FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(run_id, order_id, symbol, side, qty, price, commission, tick, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.RunID, f.OrderID, f.Symbol, f.Side,
		f.Qty.String(), f.Price.String(), f.Commission.String(), f.Tick, f.Time,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquityRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, tick, time, cash, market_value, equity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Tick, e.Time,
		e.Cash.String(), e.MarketValue.String(), e.Equity.String(),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
