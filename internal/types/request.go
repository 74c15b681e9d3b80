package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is a request to the order matcher. It is implemented only
// by StockOrder and OptionOrder.
type OrderRequest interface {
	orderRequest()
	// Ticket returns the fields common to both instrument variants.
	Ticket() Ticket
}

// Ticket holds the instrument-independent part of an order request.
type Ticket struct {
	Symbol     string
	Quantity   int
	Side       Side
	Kind       OrderKind
	LimitPrice decimal.NullDecimal
}

// StockOrder requests shares of a stock.
type StockOrder struct {
	Symbol     string
	Quantity   int
	Side       Side
	Kind       OrderKind
	LimitPrice decimal.NullDecimal
}

func (StockOrder) orderRequest() {}

// Ticket implements OrderRequest.
func (o StockOrder) Ticket() Ticket {
	return Ticket{
		Symbol:     o.Symbol,
		Quantity:   o.Quantity,
		Side:       o.Side,
		Kind:       o.Kind,
		LimitPrice: o.LimitPrice,
	}
}

// OptionOrder requests option contracts on an underlying.
type OptionOrder struct {
	Contract   OptionContract
	Quantity   int
	Side       Side
	Kind       OrderKind
	LimitPrice decimal.NullDecimal
}

func (OptionOrder) orderRequest() {}

// Ticket implements OrderRequest.
func (o OptionOrder) Ticket() Ticket {
	return Ticket{
		Symbol:     o.Contract.Underlying,
		Quantity:   o.Quantity,
		Side:       o.Side,
		Kind:       o.Kind,
		LimitPrice: o.LimitPrice,
	}
}

// MarketStock builds a market order for shares.
func MarketStock(symbol string, quantity int, side Side) StockOrder {
	return StockOrder{Symbol: symbol, Quantity: quantity, Side: side, Kind: OrderKindMarket}
}

// LimitStock builds a limit order for shares.
func LimitStock(symbol string, quantity int, side Side, limit decimal.Decimal) StockOrder {
	return StockOrder{
		Symbol:     symbol,
		Quantity:   quantity,
		Side:       side,
		Kind:       OrderKindLimit,
		LimitPrice: decimal.NewNullDecimal(limit),
	}
}

// MarketOption builds a market order for option contracts.
func MarketOption(underlying string, strike decimal.Decimal, kind OptionKind, expiration time.Time, quantity int, side Side) OptionOrder {
	return OptionOrder{
		Contract: OptionContract{
			Underlying: underlying,
			Strike:     strike,
			Expiration: expiration,
			Kind:       kind,
		},
		Quantity: quantity,
		Side:     side,
		Kind:     OrderKindMarket,
	}
}
