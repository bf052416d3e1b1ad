package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleRun(id string) RunRecord {
	return RunRecord{
		RunID:        id,
		Created:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Strategy:     "smacross",
		Symbols:      "AAA,BBB",
		Frequency:    "1d",
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		Status:       "Completed",
		StartBalance: dec("1000000"),
		EndBalance:   dec("1000393.82"),
		NetPL:        dec("393.82"),
		ReturnPct:    0.039382,
		MaxDDPct:     1.25,
		WinRate:      0.6,
		ProfitFactor: 1.8,
		Trades:       5,
		Wins:         3,
		Losses:       2,
	}
}

func TestRunRoundTrip(t *testing.T) {
	j := openTestDB(t)

	want := sampleRun("run-1")
	require.NoError(t, j.RecordRun(want))

	got, err := j.GetRun("run-1")
	require.NoError(t, err)

	assert.Equal(t, want.Strategy, got.Strategy)
	assert.Equal(t, want.Symbols, got.Symbols)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, got.StartBalance.Equal(want.StartBalance))
	assert.True(t, got.EndBalance.Equal(want.EndBalance))
	assert.True(t, got.NetPL.Equal(want.NetPL))
	assert.Equal(t, want.Trades, got.Trades)
	assert.Equal(t, want.WinRate, got.WinRate)

	_, err = j.GetRun("no-such-run")
	assert.Error(t, err)
}

func TestRecordRunIsUpsert(t *testing.T) {
	j := openTestDB(t)

	rec := sampleRun("run-1")
	rec.Status = "Running"
	require.NoError(t, j.RecordRun(rec))

	rec.Status = "Failed"
	rec.ErrKind = "strategy"
	rec.ErrMsg = "panic in HandleBar"
	require.NoError(t, j.RecordRun(rec))

	got, err := j.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "Failed", got.Status)
	assert.Equal(t, "strategy", got.ErrKind)

	runs, err := j.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 1, "replace, not duplicate")
}

func TestFillsPreserveOrderAndPrecision(t *testing.T) {
	j := openTestDB(t)

	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	fills := []FillRecord{
		{RunID: "run-1", OrderID: "o1", Symbol: "AAA", Side: "BUY", Qty: dec("100"), Price: dec("100.01"), Commission: dec("0.30003"), Tick: 2, Time: base},
		{RunID: "run-1", OrderID: "o2", Symbol: "AAA", Side: "SELL", Qty: dec("100"), Price: dec("105"), Commission: dec("3.15"), Tick: 4, Time: base.AddDate(0, 0, 2)},
		{RunID: "run-2", OrderID: "o3", Symbol: "BBB", Side: "BUY", Qty: dec("1"), Price: dec("9.99"), Commission: dec("0"), Tick: 1, Time: base},
	}
	for _, f := range fills {
		require.NoError(t, j.RecordFill(f))
	}

	got, err := j.ListFillsByRun("run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o1", got[0].OrderID)
	assert.Equal(t, "o2", got[1].OrderID)
	assert.True(t, got[0].Price.Equal(dec("100.01")))
	assert.True(t, got[0].Commission.Equal(dec("0.30003")), "decimal text survives storage exactly")

	empty, err := j.ListFillsByRun("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEquityCurveRoundTrip(t *testing.T) {
	j := openTestDB(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, eq := range []string{"1000000", "999996.97", "1000096.97"} {
		require.NoError(t, j.RecordEquity(EquityRecord{
			RunID:       "run-1",
			Tick:        i,
			Time:        base.AddDate(0, 0, i),
			Cash:        dec("989896.97"),
			MarketValue: dec(eq).Sub(dec("989896.97")),
			Equity:      dec(eq),
		}))
	}

	got, err := j.ListEquityByRun("run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rec := range got {
		assert.Equal(t, i, rec.Tick, "tick order preserved")
		assert.True(t, rec.Cash.Add(rec.MarketValue).Equal(rec.Equity))
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	j := openTestDB(t)

	require.NoError(t, j.RecordRun(sampleRun("run-a")))
	require.NoError(t, j.RecordRun(sampleRun("run-b")))

	runs, err := j.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].RunID)
	assert.Equal(t, "run-a", runs[1].RunID)
}
