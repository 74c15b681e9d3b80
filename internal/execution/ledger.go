package execution

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/types"
)

var (
	errInsufficientCash     = errors.New("insufficient funds")
	errNoPosition           = errors.New("no position to sell")
	errInsufficientPosition = errors.New("insufficient position")
)

// Ledger holds cash and open positions for one simulation session.
// Only the Simulator mutates it.
type Ledger struct {
	cash        decimal.Decimal
	initialCash decimal.Decimal
	positions   map[types.PositionKey]*types.Position
}

// NewLedger creates a ledger holding only cash.
func NewLedger(initialCash decimal.Decimal) *Ledger {
	return &Ledger{
		cash:        initialCash,
		initialCash: initialCash,
		positions:   make(map[types.PositionKey]*types.Position),
	}
}

// Cash returns the available cash.
func (l *Ledger) Cash() decimal.Decimal {
	return l.cash
}

// InitialCash returns the cash the ledger started with.
func (l *Ledger) InitialCash() decimal.Decimal {
	return l.initialCash
}

// Position returns a copy of the position stored under key.
func (l *Ledger) Position(key types.PositionKey) (types.Position, bool) {
	pos, ok := l.positions[key]
	if !ok {
		return types.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions.
func (l *Ledger) Positions() map[types.PositionKey]types.Position {
	out := make(map[types.PositionKey]types.Position, len(l.positions))
	for k, v := range l.positions {
		out[k] = *v
	}
	return out
}

// Keys returns the position keys in sorted order.
func (l *Ledger) Keys() []types.PositionKey {
	keys := make([]types.PositionKey, 0, len(l.positions))
	for k := range l.positions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// NumPositions returns the number of open positions.
func (l *Ledger) NumPositions() int {
	return len(l.positions)
}

// PositionsValue returns the sum of quantity * current price.
func (l *Ledger) PositionsValue() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range l.positions {
		total = total.Add(pos.MarketValue())
	}
	return total
}

// AccountValue returns cash plus positions value.
func (l *Ledger) AccountValue() decimal.Decimal {
	return l.cash.Add(l.PositionsValue())
}

// PL returns account value minus initial cash.
func (l *Ledger) PL() decimal.Decimal {
	return l.AccountValue().Sub(l.initialCash)
}

// PLPercent returns PL as a percentage of initial cash.
func (l *Ledger) PLPercent() decimal.Decimal {
	if l.initialCash.IsZero() {
		return decimal.Zero
	}
	return l.PL().Div(l.initialCash).Mul(decimal.NewFromInt(100))
}

// buy debits cash and merges the fill into the position at key.
// Nothing changes when cost exceeds cash.
func (l *Ledger) buy(key types.PositionKey, template types.Position, qty int, price decimal.Decimal) error {
	cost := price.Mul(decimal.NewFromInt(int64(qty)))
	if cost.GreaterThan(l.cash) {
		return errInsufficientCash
	}

	l.cash = l.cash.Sub(cost)

	if pos, ok := l.positions[key]; ok {
		total := pos.Quantity + qty
		weighted := pos.EntryPrice.Mul(decimal.NewFromInt(int64(pos.Quantity))).Add(cost)
		pos.EntryPrice = weighted.Div(decimal.NewFromInt(int64(total)))
		pos.Quantity = total
		pos.CurrentPrice = price
		return nil
	}

	pos := template
	pos.Quantity = qty
	pos.EntryPrice = price
	pos.CurrentPrice = price
	l.positions[key] = &pos
	return nil
}

// sell credits cash and reduces the position at key, deleting it at zero.
// Nothing changes when the position is missing or too small.
func (l *Ledger) sell(key types.PositionKey, qty int, price decimal.Decimal) error {
	pos, ok := l.positions[key]
	if !ok {
		return errNoPosition
	}
	if pos.Quantity < qty {
		return errInsufficientPosition
	}

	l.cash = l.cash.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	pos.Quantity -= qty
	if pos.Quantity == 0 {
		delete(l.positions, key)
	}
	return nil
}

// mark sets the current price of the position at key.
func (l *Ledger) mark(key types.PositionKey, price decimal.Decimal) {
	if pos, ok := l.positions[key]; ok {
		pos.CurrentPrice = price
	}
}

// reset restores the initial cash and drops all positions.
func (l *Ledger) reset() {
	l.cash = l.initialCash
	l.positions = make(map[types.PositionKey]*types.Position)
}
