// Package types defines shared types used across the simulator and harness.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an order.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderKind is the execution style of an order.
type OrderKind int

const (
	OrderKindMarket OrderKind = iota
	OrderKindLimit
)

func (k OrderKind) String() string {
	switch k {
	case OrderKindMarket:
		return "MARKET"
	case OrderKindLimit:
		return "LIMIT"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus represents the state of an order.
type OrderStatus int

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusFilled
	OrderStatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "PENDING"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal returns true if the order is in a terminal state.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected
}

// OptionKind is the right of an option contract.
type OptionKind int

const (
	OptionCall OptionKind = iota
	OptionPut
)

func (k OptionKind) String() string {
	switch k {
	case OptionCall:
		return "CALL"
	case OptionPut:
		return "PUT"
	default:
		return "UNKNOWN"
	}
}

// ParseOptionKind parses "CALL" or "PUT".
func ParseOptionKind(s string) (OptionKind, error) {
	switch s {
	case "CALL":
		return OptionCall, nil
	case "PUT":
		return OptionPut, nil
	default:
		return 0, fmt.Errorf("unknown option kind: %q", s)
	}
}

// PositionKind distinguishes stock holdings from option holdings.
type PositionKind int

const (
	PositionStock PositionKind = iota
	PositionOption
)

func (k PositionKind) String() string {
	if k == PositionOption {
		return "option"
	}
	return "stock"
}

// OptionContract identifies a listed option.
type OptionContract struct {
	Underlying string
	Strike     decimal.Decimal
	Expiration time.Time // zero means "unspecified"
	Kind       OptionKind
}

// PositionKey is the identity under which fills are merged.
// Stock positions use the symbol alone; option positions also carry
// strike, right and expiration date.
type PositionKey string

// StockKey returns the position key for a stock symbol.
func StockKey(symbol string) PositionKey {
	return PositionKey(symbol)
}

// Key returns the position key for an option contract.
func (c OptionContract) Key() PositionKey {
	expiry := "none"
	if !c.Expiration.IsZero() {
		expiry = c.Expiration.Format("2006-01-02")
	}
	return PositionKey(fmt.Sprintf("%s_%s_%s_%s", c.Underlying, c.Strike.String(), c.Kind, expiry))
}

// Position represents a held quantity of a stock or an option.
type Position struct {
	Symbol       string
	Quantity     int
	EntryPrice   decimal.Decimal // volume-weighted average cost
	CurrentPrice decimal.Decimal
	Kind         PositionKind

	// Option fields, only meaningful when Kind == PositionOption.
	Strike     decimal.Decimal
	Expiration time.Time
	OptionKind OptionKind
}

// MarketValue returns quantity * current price.
func (p Position) MarketValue() decimal.Decimal {
	return p.CurrentPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// UnrealizedPL returns (current - entry) * quantity.
func (p Position) UnrealizedPL() decimal.Decimal {
	return p.CurrentPrice.Sub(p.EntryPrice).Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// UnrealizedPLPercent returns unrealized P&L as a percentage of cost basis.
// A zero entry price yields zero.
func (p Position) UnrealizedPLPercent() decimal.Decimal {
	if p.EntryPrice.IsZero() || p.Quantity == 0 {
		return decimal.Zero
	}
	qty := p.Quantity
	if qty < 0 {
		qty = -qty
	}
	basis := p.EntryPrice.Mul(decimal.NewFromInt(int64(qty)))
	return p.UnrealizedPL().Div(basis).Mul(decimal.NewFromInt(100))
}

// Order is the record of a trade request and its resolution.
type Order struct {
	ID         string
	Symbol     string
	Quantity   int
	Side       Side
	Kind       OrderKind
	LimitPrice decimal.NullDecimal
	Status     OrderStatus

	FilledPrice  decimal.Decimal // valid only when Status == OrderStatusFilled
	FilledAt     time.Time
	CreatedAt    time.Time
	RejectReason string

	IsOption bool
	Option   OptionContract
}

// Filled reports whether the order resolved to a fill.
func (o *Order) Filled() bool {
	return o.Status == OrderStatusFilled
}

// AccountSummary is a point-in-time view of a ledger.
type AccountSummary struct {
	Cash           decimal.Decimal
	PositionsValue decimal.Decimal
	TotalValue     decimal.Decimal
	InitialValue   decimal.Decimal
	TotalPL        decimal.Decimal
	TotalPLPercent decimal.Decimal
	NumPositions   int
	NumOrders      int
}
