package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/market"
	"github.com/tathienbao/options-lab/internal/types"
)

// SimulatedConfig holds configuration for the simulated executor.
type SimulatedConfig struct {
	InitialCash decimal.Decimal
	Clock       func() time.Time // defaults to time.Now
}

// DefaultSimulatedConfig returns the default paper account.
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		InitialCash: decimal.NewFromInt(100000),
		Clock:       time.Now,
	}
}

// SimulatedExecutor matches orders against a PriceOracle and books fills
// into its Ledger.
//
// Limit orders are fire-and-forget: a limit that is not marketable when
// placed stays PENDING and is never looked at again. There is no
// background matching loop.
//
// A SimulatedExecutor has a single owner and is not safe for concurrent use.
type SimulatedExecutor struct {
	cfg    SimulatedConfig
	oracle PriceOracle
	logger *slog.Logger

	ledger   *Ledger
	orders   []types.Order // every order, in placement order
	history  []types.Order // filled orders only
	observer OrderObserver
}

// NewSimulatedExecutor creates a new simulated executor.
func NewSimulatedExecutor(cfg SimulatedConfig, oracle PriceOracle, logger *slog.Logger) *SimulatedExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	logger.Debug("simulator initialized", "cash", cfg.InitialCash.StringFixed(2))

	return &SimulatedExecutor{
		cfg:     cfg,
		oracle:  oracle,
		logger:  logger,
		ledger:  NewLedger(cfg.InitialCash),
		orders:  make([]types.Order, 0),
		history: make([]types.Order, 0),
	}
}

// SetObserver registers a callback for placed orders.
func (s *SimulatedExecutor) SetObserver(observer OrderObserver) {
	s.observer = observer
}

// Ledger returns the account ledger.
func (s *SimulatedExecutor) Ledger() *Ledger {
	return s.ledger
}

// PlaceOrder submits an order for execution.
//
// Market orders fill or reject immediately. Limit orders fill immediately
// when marketable against a single quote, otherwise they are left PENDING.
// Insufficient cash or position yields a REJECTED order with a nil error:
// callers must check Status before reading FilledPrice.
func (s *SimulatedExecutor) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order, err := s.newOrder(req)
	if err != nil {
		return nil, err
	}

	idx := len(s.orders)
	s.orders = append(s.orders, *order)

	switch order.Kind {
	case types.OrderKindMarket:
		s.execute(order, req)
	case types.OrderKindLimit:
		quote := s.quote(req)
		limit := order.LimitPrice.Decimal
		marketable := (order.Side == types.SideBuy && limit.GreaterThanOrEqual(quote)) ||
			(order.Side == types.SideSell && limit.LessThanOrEqual(quote))
		if marketable {
			s.execute(order, req)
		} else {
			s.logger.Info("limit order resting",
				"side", order.Side.String(),
				"quantity", order.Quantity,
				"symbol", order.Symbol,
				"limit", limit.StringFixed(2),
				"quote", quote.StringFixed(2),
			)
		}
	}

	s.orders[idx] = *order
	if s.observer != nil {
		s.observer.ObserveOrder(*order)
	}

	result := *order
	return &result, nil
}

func (s *SimulatedExecutor) newOrder(req types.OrderRequest) (*types.Order, error) {
	ticket := req.Ticket()
	if ticket.Quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidQuantity, ticket.Quantity)
	}
	if ticket.Kind == types.OrderKindLimit && (!ticket.LimitPrice.Valid || !ticket.LimitPrice.Decimal.IsPositive()) {
		return nil, types.ErrInvalidLimitPrice
	}

	order := &types.Order{
		ID:         uuid.New().String(),
		Symbol:     ticket.Symbol,
		Quantity:   ticket.Quantity,
		Side:       ticket.Side,
		Kind:       ticket.Kind,
		LimitPrice: ticket.LimitPrice,
		Status:     types.OrderStatusPending,
		CreatedAt:  s.cfg.Clock(),
	}

	switch r := req.(type) {
	case types.StockOrder:
	case types.OptionOrder:
		order.IsOption = true
		order.Option = r.Contract
	default:
		return nil, fmt.Errorf("%w: %T", types.ErrUnknownRequest, req)
	}

	return order, nil
}

// quote reads the current price for the instrument in req.
func (s *SimulatedExecutor) quote(req types.OrderRequest) decimal.Decimal {
	switch r := req.(type) {
	case types.OptionOrder:
		c := r.Contract
		return s.oracle.OptionPrice(c.Underlying, c.Strike, c.Kind, s.daysToExpiry(c.Expiration))
	case types.StockOrder:
		return s.oracle.Price(r.Symbol)
	default:
		return decimal.Zero
	}
}

// execute resolves order to FILLED or REJECTED, mutating the ledger only
// on fill.
func (s *SimulatedExecutor) execute(order *types.Order, req types.OrderRequest) {
	price := s.quote(req)

	var (
		key      types.PositionKey
		template types.Position
	)
	switch r := req.(type) {
	case types.OptionOrder:
		key = r.Contract.Key()
		template = types.Position{
			Symbol:     r.Contract.Underlying,
			Kind:       types.PositionOption,
			Strike:     r.Contract.Strike,
			Expiration: r.Contract.Expiration,
			OptionKind: r.Contract.Kind,
		}
	case types.StockOrder:
		key = types.StockKey(r.Symbol)
		template = types.Position{Symbol: r.Symbol, Kind: types.PositionStock}
	}

	var err error
	if order.Side == types.SideBuy {
		err = s.ledger.buy(key, template, order.Quantity, price)
	} else {
		err = s.ledger.sell(key, order.Quantity, price)
	}

	if err != nil {
		order.Status = types.OrderStatusRejected
		order.RejectReason = err.Error()
		s.logger.Warn("order rejected",
			"reason", err.Error(),
			"side", order.Side.String(),
			"quantity", order.Quantity,
			"symbol", order.Symbol,
			"price", price.StringFixed(2),
			"cash", s.ledger.Cash().StringFixed(2),
		)
		return
	}

	order.Status = types.OrderStatusFilled
	order.FilledPrice = price
	order.FilledAt = s.cfg.Clock()
	s.history = append(s.history, *order)

	s.logger.Info("order executed",
		"side", order.Side.String(),
		"quantity", order.Quantity,
		"symbol", order.Symbol,
		"price", price.StringFixed(2),
	)
}

// daysToExpiry returns whole days until expiration, or the default when
// no expiration is set. Past expirations count as zero days.
func (s *SimulatedExecutor) daysToExpiry(expiration time.Time) int {
	if expiration.IsZero() {
		return market.DefaultDaysToExpiry
	}
	days := int(expiration.Sub(s.cfg.Clock()).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// MarkToMarket re-prices every open position through the oracle. Each
// position read advances its underlying's price walk.
func (s *SimulatedExecutor) MarkToMarket() {
	for _, key := range s.ledger.Keys() {
		pos, _ := s.ledger.Position(key)
		var price decimal.Decimal
		if pos.Kind == types.PositionOption {
			price = s.oracle.OptionPrice(pos.Symbol, pos.Strike, pos.OptionKind, s.daysToExpiry(pos.Expiration))
		} else {
			price = s.oracle.Price(pos.Symbol)
		}
		s.ledger.mark(key, price)
	}
}

// Orders returns every placed order, including pending and rejected ones.
func (s *SimulatedExecutor) Orders() []types.Order {
	orders := make([]types.Order, len(s.orders))
	copy(orders, s.orders)
	return orders
}

// History returns filled orders in fill order.
func (s *SimulatedExecutor) History() []types.Order {
	history := make([]types.Order, len(s.history))
	copy(history, s.history)
	return history
}

// PendingOrders returns limit orders that never became marketable.
func (s *SimulatedExecutor) PendingOrders() []types.Order {
	var pending []types.Order
	for _, o := range s.orders {
		if o.Status == types.OrderStatusPending {
			pending = append(pending, o)
		}
	}
	return pending
}

// Summary returns the account view. Position marks are whatever the last
// fill or MarkToMarket left; call MarkToMarket first for fresh values.
func (s *SimulatedExecutor) Summary() types.AccountSummary {
	return types.AccountSummary{
		Cash:           s.ledger.Cash().Round(2),
		PositionsValue: s.ledger.PositionsValue().Round(2),
		TotalValue:     s.ledger.AccountValue().Round(2),
		InitialValue:   s.ledger.InitialCash().Round(2),
		TotalPL:        s.ledger.PL().Round(2),
		TotalPLPercent: s.ledger.PLPercent().Round(2),
		NumPositions:   s.ledger.NumPositions(),
		NumOrders:      len(s.history),
	}
}

// Reset clears all state back to the initial cash.
func (s *SimulatedExecutor) Reset() {
	s.ledger.reset()
	s.orders = make([]types.Order, 0)
	s.history = make([]types.Order, 0)
}
