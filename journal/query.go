package journal

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// GetRun returns a single run record by ID.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	row := j.db.QueryRow(`
		SELECT run_id, created, strategy, symbols, frequency, start_time, end_time, status,
		       start_balance, end_balance, net_pl, return_pct, max_dd_pct,
		       win_rate, profit_factor, trades, wins, losses, err_kind, err_msg
		FROM backtest_runs
		WHERE run_id = ?`, runID)

	var (
		rec                     RunRecord
		startBal, endBal, netPL string
	)
	err := row.Scan(
		&rec.RunID, &rec.Created, &rec.Strategy, &rec.Symbols, &rec.Frequency,
		&rec.Start, &rec.End, &rec.Status,
		&startBal, &endBal, &netPL,
		&rec.ReturnPct, &rec.MaxDDPct, &rec.WinRate, &rec.ProfitFactor,
		&rec.Trades, &rec.Wins, &rec.Losses, &rec.ErrKind, &rec.ErrMsg,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return RunRecord{}, fmt.Errorf("run %q not found", runID)
		}
		return RunRecord{}, err
	}

	if rec.StartBalance, err = decimal.NewFromString(startBal); err != nil {
		return RunRecord{}, fmt.Errorf("run %q: bad start_balance: %w", runID, err)
	}
	if rec.EndBalance, err = decimal.NewFromString(endBal); err != nil {
		return RunRecord{}, fmt.Errorf("run %q: bad end_balance: %w", runID, err)
	}
	if rec.NetPL, err = decimal.NewFromString(netPL); err != nil {
		return RunRecord{}, fmt.Errorf("run %q: bad net_pl: %w", runID, err)
	}
	return rec, nil
}

// ListRuns returns all run records, newest first.
func (j *SQLite) ListRuns() ([]RunRecord, error) {
	rows, err := j.db.Query(`SELECT run_id FROM backtest_runs ORDER BY run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]RunRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := j.GetRun(id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListFillsByRun returns a run's fills in execution order.
func (j *SQLite) ListFillsByRun(runID string) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, order_id, symbol, side, qty, price, commission, tick, time
		FROM fills
		WHERE run_id = ?
		ORDER BY tick ASC, order_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var (
			rec                    FillRecord
			qty, price, commission string
		)
		if err := rows.Scan(
			&rec.RunID, &rec.OrderID, &rec.Symbol, &rec.Side,
			&qty, &price, &commission, &rec.Tick, &rec.Time,
		); err != nil {
			return nil, err
		}
		if rec.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if rec.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if rec.Commission, err = decimal.NewFromString(commission); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEquityByRun returns a run's equity curve in tick order.
func (j *SQLite) ListEquityByRun(runID string) ([]EquityRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, tick, time, cash, market_value, equity
		FROM equity
		WHERE run_id = ?
		ORDER BY tick ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		var (
			rec              EquityRecord
			cash, mv, equity string
		)
		if err := rows.Scan(&rec.RunID, &rec.Tick, &rec.Time, &cash, &mv, &equity); err != nil {
			return nil, err
		}
		if rec.Cash, err = decimal.NewFromString(cash); err != nil {
			return nil, err
		}
		if rec.MarketValue, err = decimal.NewFromString(mv); err != nil {
			return nil, err
		}
		if rec.Equity, err = decimal.NewFromString(equity); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
