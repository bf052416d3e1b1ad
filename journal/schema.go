package journal

// Decimal columns are stored as TEXT so the journal round-trips the engine's
// exact values.
const Schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbols TEXT NOT NULL,
	frequency TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	status TEXT NOT NULL,
	start_balance TEXT NOT NULL,
	end_balance TEXT NOT NULL,
	net_pl TEXT NOT NULL,
	return_pct REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	err_kind TEXT NOT NULL DEFAULT '',
	err_msg TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fills (
	run_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty TEXT NOT NULL,
	price TEXT NOT NULL,
	commission TEXT NOT NULL,
	tick INTEGER NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	tick INTEGER NOT NULL,
	time DATETIME NOT NULL,
	cash TEXT NOT NULL,
	market_value TEXT NOT NULL,
	equity TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run_id, tick);
CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id, tick);
`
