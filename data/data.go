// Package data loads historical bar streams and replays them as a single
// time-ordered tick sequence with point-in-time, no-future-leak queries.
package data

import (
	"context"
	"errors"
	"time"

	"github.com/openquant/backtester/market"
)

var (
	// ErrDataUnavailable means the source returned nothing for a requested range.
	ErrDataUnavailable = errors.New("data: no bars for requested range")

	// ErrUnknownSymbol means the symbol was never loaded into the dataset.
	ErrUnknownSymbol = errors.New("data: unknown symbol")

	// ErrDataGap means a lookback request exceeds the available history.
	ErrDataGap = errors.New("data: lookback exceeds available history")
)

// Source supplies per-symbol, time-ordered bar streams.
// Implementations must return bars with strictly increasing timestamps.
type Source interface {
	Query(ctx context.Context, symbol string, start, end time.Time, freq market.Frequency) ([]market.Bar, error)
}
