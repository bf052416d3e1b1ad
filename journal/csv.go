package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVJournal writes fills and equity to two CSV files. Run summaries are
// not persisted in CSV mode; use the sqlite journal for queryable output.
type CSVJournal struct {
	fills  *csv.Writer
	equity *csv.Writer
	ff, ef *os.File
}

func NewCSV(fillsPath, equityPath string) (*CSVJournal, error) {
	ff, err := os.Create(fillsPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		ff.Close()
		return nil, err
	}

	fw := csv.NewWriter(ff)
	ew := csv.NewWriter(ef)

	if err := fw.Write([]string{"run_id", "order_id", "symbol", "side", "qty", "price", "commission", "tick", "time"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"run_id", "tick", "time", "cash", "market_value", "equity"}); err != nil {
		return nil, err
	}

	fw.Flush()
	if err := fw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{fills: fw, equity: ew, ff: ff, ef: ef}, nil
}

func (j *CSVJournal) RecordRun(RunRecord) error { return nil }

func (j *CSVJournal) RecordFill(f FillRecord) error {
	j.fills.Write([]string{
		f.RunID,
		f.OrderID,
		f.Symbol,
		f.Side,
		f.Qty.String(),
		f.Price.String(),
		f.Commission.String(),
		strconv.Itoa(f.Tick),
		f.Time.Format(time.RFC3339),
	})
	j.fills.Flush()
	return j.fills.Error()
}

func (j *CSVJournal) RecordEquity(e EquityRecord) error {
	j.equity.Write([]string{
		e.RunID,
		strconv.Itoa(e.Tick),
		e.Time.Format(time.RFC3339),
		e.Cash.String(),
		e.MarketValue.String(),
		e.Equity.String(),
	})
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.fills.Flush()
	j.equity.Flush()
	err1 := j.ff.Close()
	err2 := j.ef.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
