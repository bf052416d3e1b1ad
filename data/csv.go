package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openquant/backtester/market"
)

// CSVSource reads canonical bar CSV files, one per symbol, named
// <dir>/<SYMBOL>.csv with rows:
//
//	time,open,high,low,close,volume
//
// where time is RFC3339 or RFC3339Nano. A header row ("time,...") is allowed.
// Empty/short rows are skipped.
type CSVSource struct {
	Dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

// Query returns the bars for symbol with timestamps in [start, end).
func (s *CSVSource) Query(ctx context.Context, symbol string, start, end time.Time, freq market.Frequency) ([]market.Bar, error) {
	path := filepath.Join(s.Dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("csv source %s: %w", symbol, ErrDataUnavailable)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var bars []market.Bar
	sawFirst := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv source %s: %w", symbol, err)
		}
		if len(row) == 0 {
			continue
		}

		// Allow a single header row
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		b, ok, err := parseBarRow(symbol, row)
		if err != nil {
			return nil, fmt.Errorf("csv source %s: %w", symbol, err)
		}
		if !ok {
			continue
		}
		if !inRange(b.Time, start, end) {
			continue
		}
		bars = append(bars, b)
	}

	return bars, nil
}

func parseBarRow(symbol string, row []string) (market.Bar, bool, error) {
	if len(row) < 6 {
		return market.Bar{}, false, nil
	}

	ts, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		return market.Bar{}, false, fmt.Errorf("bad time %q: %w", row[0], err)
	}

	var px [5]decimal.Decimal
	for i := 0; i < 5; i++ {
		px[i], err = decimal.NewFromString(strings.TrimSpace(row[i+1]))
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("bad value %q: %w", row[i+1], err)
		}
	}

	return market.Bar{
		Symbol: symbol,
		Time:   ts,
		Open:   px[0],
		High:   px[1],
		Low:    px[2],
		Close:  px[3],
		Volume: px[4],
	}, true, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
