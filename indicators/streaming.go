// Package indicators provides streaming indicators over bar closes.
package indicators

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openquant/backtester/market"
)

// SMA is a streaming simple moving average of bar closes.
type SMA struct {
	period int
	closes []decimal.Decimal
	sum    decimal.Decimal
}

func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		closes: make([]decimal.Decimal, 0, period),
	}
}

func (m *SMA) Name() string {
	return fmt.Sprintf("SMA(%d)", m.period)
}

func (m *SMA) Warmup() int { return m.period }

func (m *SMA) Reset() {
	m.closes = m.closes[:0]
	m.sum = decimal.Decimal{}
}

func (m *SMA) Update(b market.Bar) {
	m.closes = append(m.closes, b.Close)
	m.sum = m.sum.Add(b.Close)
	if len(m.closes) > m.period {
		m.sum = m.sum.Sub(m.closes[0])
		m.closes = m.closes[1:]
	}
}

func (m *SMA) Ready() bool { return len(m.closes) >= m.period }

func (m *SMA) Value() decimal.Decimal {
	if !m.Ready() {
		return decimal.Decimal{}
	}
	return m.sum.Div(decimal.NewFromInt(int64(len(m.closes))))
}

// EMA is a streaming exponential moving average of bar closes. It seeds with
// the SMA of the first period bars, then applies the standard multiplier.
type EMA struct {
	period     int
	multiplier decimal.Decimal
	ema        decimal.Decimal
	count      int
	warmupSum  decimal.Decimal
}

func NewEMA(period int) *EMA {
	two := decimal.NewFromInt(2)
	den := decimal.NewFromInt(int64(period + 1))
	return &EMA{
		period:     period,
		multiplier: two.Div(den),
	}
}

func (m *EMA) Name() string {
	return fmt.Sprintf("EMA(%d)", m.period)
}

func (m *EMA) Warmup() int { return m.period }

func (m *EMA) Reset() {
	m.ema = decimal.Decimal{}
	m.count = 0
	m.warmupSum = decimal.Decimal{}
}

func (m *EMA) Update(b market.Bar) {
	m.count++
	if m.count <= m.period {
		m.warmupSum = m.warmupSum.Add(b.Close)
		if m.count == m.period {
			m.ema = m.warmupSum.Div(decimal.NewFromInt(int64(m.period)))
		}
		return
	}
	m.ema = b.Close.Sub(m.ema).Mul(m.multiplier).Add(m.ema)
}

func (m *EMA) Ready() bool { return m.count >= m.period }

func (m *EMA) Value() decimal.Decimal {
	if !m.Ready() {
		return decimal.Decimal{}
	}
	return m.ema
}
