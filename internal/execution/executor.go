// Package execution provides the simulated ledger and order matcher.
package execution

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/types"
)

// Executor defines the interface for order execution.
type Executor interface {
	// PlaceOrder submits an order. Rejections are reported through the
	// returned order's status; the error is reserved for malformed requests.
	PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error)

	// Ledger returns the read-only account view.
	Ledger() *Ledger
}

// PriceOracle supplies execution prices.
type PriceOracle interface {
	// Price returns the current price of a symbol.
	Price(symbol string) decimal.Decimal

	// OptionPrice returns the price of one option contract.
	OptionPrice(underlying string, strike decimal.Decimal, kind types.OptionKind, daysToExpiry int) decimal.Decimal
}

// OrderObserver is notified of every order once placement returns.
type OrderObserver interface {
	ObserveOrder(order types.Order)
}

// ObserverFunc adapts a function to OrderObserver.
type ObserverFunc func(order types.Order)

// ObserveOrder implements OrderObserver.
func (f ObserverFunc) ObserveOrder(order types.Order) {
	f(order)
}
