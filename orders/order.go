// Package orders holds the working-order book and matches orders against
// bars deterministically: identical (order stream, bar stream) inputs always
// produce an identical fill stream.
package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side: +1 buy, -1 sell
type Side int8

const (
	Buy  Side = +1
	Sell Side = -1
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Type is the order type.
type Type int8

const (
	Market Type = iota
	Limit
	Stop
)

func (t Type) String() string {
	switch t {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	case Stop:
		return "STOP"
	}
	return "UNKNOWN"
}

// Status is the order lifecycle state. Transitions are monotonic: once an
// order reaches a terminal state it never leaves it.
type Status int8

const (
	Created Status = iota
	Working
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

// Terminal reports whether the status is immutable.
func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

func (s Status) String() string {
	switch s {
	case Created:
		return "Created"
	case Working:
		return "Working"
	case PartiallyFilled:
		return "PartiallyFilled"
	case Filled:
		return "Filled"
	case Cancelled:
		return "Cancelled"
	case Rejected:
		return "Rejected"
	}
	return "Unknown"
}

// Order is a working or historical order. LimitPrice/StopPrice are only
// meaningful for the corresponding types.
type Order struct {
	ID           string
	Symbol       string
	Side         Side
	Type         Type
	Qty          decimal.Decimal
	LimitPrice   decimal.Decimal
	StopPrice    decimal.Decimal
	Status       Status
	CreatedTick  int
	FilledQty    decimal.Decimal
	AvgFillPrice decimal.Decimal
}

// Fill is one execution event. Append-only; one record per execution.
type Fill struct {
	OrderID    string
	Symbol     string
	Side       Side
	Qty        decimal.Decimal
	Price      decimal.Decimal
	Commission decimal.Decimal
	Tick       int
	Time       time.Time
}

// ErrorKind classifies order submission/cancellation failures. These are
// expected business conditions returned as values, never panics, so strategy
// code can branch on them.
type ErrorKind int

const (
	NoError ErrorKind = iota
	BadSymbol
	BadQuantity
	BadPrice
	UnknownOrder
	NotCancellable
	InsufficientFunds
	PositionLimit
)

func (k ErrorKind) String() string {
	switch k {
	case NoError:
		return "ok"
	case BadSymbol:
		return "bad symbol"
	case BadQuantity:
		return "bad quantity"
	case BadPrice:
		return "bad price"
	case UnknownOrder:
		return "unknown order"
	case NotCancellable:
		return "order not cancellable"
	case InsufficientFunds:
		return "insufficient funds"
	case PositionLimit:
		return "position limit exceeded"
	}
	return "unknown error"
}
