package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is an immutable OHLCV aggregate for one symbol over one interval.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Contains reports whether price lies within the bar's [low, high] range.
func (b Bar) Contains(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(b.Low) && price.LessThanOrEqual(b.High)
}

// TickBars holds the bars for a single simulated tick, keyed by symbol.
// A symbol with no bar at this tick is simply absent from the map.
type TickBars map[string]Bar

// Frequency is a bar aggregation interval.
type Frequency string

const (
	M1  Frequency = "1m"
	M5  Frequency = "5m"
	M15 Frequency = "15m"
	H1  Frequency = "1h"
	H4  Frequency = "4h"
	D1  Frequency = "1d"
)

var frequencies = map[Frequency]time.Duration{
	M1:  time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	H1:  time.Hour,
	H4:  4 * time.Hour,
	D1:  24 * time.Hour,
}

// ParseFrequency validates a frequency string.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if _, ok := frequencies[f]; !ok {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}

// Duration returns the interval covered by one bar at this frequency.
func (f Frequency) Duration() time.Duration {
	return frequencies[f]
}
