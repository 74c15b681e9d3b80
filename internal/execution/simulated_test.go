package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/types"
)

// stubOracle returns fixed prices set by the test.
type stubOracle struct {
	prices  map[string]decimal.Decimal
	options map[string]decimal.Decimal
	reads   int
}

func newStubOracle() *stubOracle {
	return &stubOracle{
		prices:  make(map[string]decimal.Decimal),
		options: make(map[string]decimal.Decimal),
	}
}

func (s *stubOracle) set(symbol, price string) {
	s.prices[symbol] = decimal.RequireFromString(price)
}

func (s *stubOracle) Price(symbol string) decimal.Decimal {
	s.reads++
	return s.prices[symbol]
}

func (s *stubOracle) OptionPrice(underlying string, strike decimal.Decimal, kind types.OptionKind, days int) decimal.Decimal {
	s.reads++
	if p, ok := s.options[underlying+kind.String()]; ok {
		return p
	}
	return decimal.RequireFromString("1.00")
}

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestExecutor(oracle PriceOracle) *SimulatedExecutor {
	return NewSimulatedExecutor(SimulatedConfig{
		InitialCash: decimal.NewFromInt(100000),
		Clock:       func() time.Time { return fixedNow },
	}, oracle, nil)
}

func mustPlace(t *testing.T, exec *SimulatedExecutor, req types.OrderRequest) *types.Order {
	t.Helper()
	order, err := exec.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	return order
}

// TestSimulatedExecutor_Scenarios walks the buy, average, partial sell
// and rejection sequence on one ledger.
func TestSimulatedExecutor_Scenarios(t *testing.T) {
	oracle := newStubOracle()
	exec := newTestExecutor(oracle)
	ledger := exec.Ledger()
	key := types.StockKey("SYM")

	// Buy 10 @ 450.
	oracle.set("SYM", "450.00")
	order := mustPlace(t, exec, types.MarketStock("SYM", 10, types.SideBuy))
	if order.Status != types.OrderStatusFilled {
		t.Fatalf("Status = %v, want FILLED", order.Status)
	}
	if !ledger.Cash().Equal(decimal.NewFromInt(95500)) {
		t.Errorf("Cash = %s, want 95500", ledger.Cash())
	}
	pos, ok := ledger.Position(key)
	if !ok {
		t.Fatal("expected SYM position")
	}
	if pos.Quantity != 10 || !pos.EntryPrice.Equal(decimal.NewFromInt(450)) {
		t.Errorf("position = %d @ %s, want 10 @ 450", pos.Quantity, pos.EntryPrice)
	}

	// Buy 5 more @ 460: volume-weighted entry.
	oracle.set("SYM", "460.00")
	mustPlace(t, exec, types.MarketStock("SYM", 5, types.SideBuy))
	pos, _ = ledger.Position(key)
	if pos.Quantity != 15 {
		t.Errorf("Quantity = %d, want 15", pos.Quantity)
	}
	if !pos.EntryPrice.Round(2).Equal(decimal.RequireFromString("453.33")) {
		t.Errorf("EntryPrice = %s, want 453.33", pos.EntryPrice.Round(2))
	}
	if !ledger.Cash().Equal(decimal.NewFromInt(93200)) {
		t.Errorf("Cash = %s, want 93200", ledger.Cash())
	}

	// Sell 8 @ 470.
	oracle.set("SYM", "470.00")
	order = mustPlace(t, exec, types.MarketStock("SYM", 8, types.SideSell))
	if order.Status != types.OrderStatusFilled {
		t.Fatalf("Status = %v, want FILLED", order.Status)
	}
	if !ledger.Cash().Equal(decimal.NewFromInt(96960)) {
		t.Errorf("Cash = %s, want 96960", ledger.Cash())
	}
	pos, _ = ledger.Position(key)
	if pos.Quantity != 7 {
		t.Errorf("Quantity = %d, want 7", pos.Quantity)
	}
	if !pos.EntryPrice.Round(2).Equal(decimal.RequireFromString("453.33")) {
		t.Errorf("EntryPrice = %s, want 453.33 after sell", pos.EntryPrice.Round(2))
	}

	// Oversell is rejected and changes nothing.
	order = mustPlace(t, exec, types.MarketStock("SYM", 20, types.SideSell))
	if order.Status != types.OrderStatusRejected {
		t.Errorf("Status = %v, want REJECTED", order.Status)
	}
	if order.RejectReason == "" {
		t.Error("expected a reject reason")
	}
	after, _ := ledger.Position(key)
	if after.Quantity != 7 || !ledger.Cash().Equal(decimal.NewFromInt(96960)) {
		t.Errorf("ledger changed on rejection: qty=%d cash=%s", after.Quantity, ledger.Cash())
	}

	// Unaffordable buy is rejected.
	oracle.set("SYM", "450.00")
	order = mustPlace(t, exec, types.MarketStock("SYM", 1000000, types.SideBuy))
	if order.Status != types.OrderStatusRejected {
		t.Errorf("Status = %v, want REJECTED", order.Status)
	}
	if order.RejectReason != "insufficient funds" {
		t.Errorf("RejectReason = %q, want %q", order.RejectReason, "insufficient funds")
	}
	if !ledger.Cash().Equal(decimal.NewFromInt(96960)) {
		t.Errorf("Cash = %s, want 96960", ledger.Cash())
	}

	if got := len(exec.History()); got != 3 {
		t.Errorf("len(History) = %d, want 3", got)
	}
	if got := len(exec.Orders()); got != 5 {
		t.Errorf("len(Orders) = %d, want 5", got)
	}
}

func TestSimulatedExecutor_SellWithoutPosition(t *testing.T) {
	oracle := newStubOracle()
	oracle.set("AAPL", "180.00")
	exec := newTestExecutor(oracle)

	order := mustPlace(t, exec, types.MarketStock("AAPL", 1, types.SideSell))

	if order.Status != types.OrderStatusRejected {
		t.Errorf("Status = %v, want REJECTED", order.Status)
	}
	if !exec.Ledger().Cash().Equal(decimal.NewFromInt(100000)) {
		t.Errorf("Cash = %s, want 100000", exec.Ledger().Cash())
	}
}

func TestSimulatedExecutor_SellAllRemovesPosition(t *testing.T) {
	oracle := newStubOracle()
	oracle.set("SPY", "100.00")
	exec := newTestExecutor(oracle)

	mustPlace(t, exec, types.MarketStock("SPY", 3, types.SideBuy))
	mustPlace(t, exec, types.MarketStock("SPY", 3, types.SideSell))

	if _, ok := exec.Ledger().Position(types.StockKey("SPY")); ok {
		t.Error("position should be removed at zero quantity")
	}
	if exec.Ledger().NumPositions() != 0 {
		t.Errorf("NumPositions = %d, want 0", exec.Ledger().NumPositions())
	}
}

func TestSimulatedExecutor_InvalidRequests(t *testing.T) {
	tests := []struct {
		name    string
		req     types.OrderRequest
		wantErr error
	}{
		{
			name:    "zero quantity",
			req:     types.MarketStock("SPY", 0, types.SideBuy),
			wantErr: types.ErrInvalidQuantity,
		},
		{
			name:    "negative quantity",
			req:     types.MarketStock("SPY", -5, types.SideSell),
			wantErr: types.ErrInvalidQuantity,
		},
		{
			name:    "limit without price",
			req:     types.StockOrder{Symbol: "SPY", Quantity: 1, Side: types.SideBuy, Kind: types.OrderKindLimit},
			wantErr: types.ErrInvalidLimitPrice,
		},
		{
			name:    "limit with zero price",
			req:     types.LimitStock("SPY", 1, types.SideBuy, decimal.Zero),
			wantErr: types.ErrInvalidLimitPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newTestExecutor(newStubOracle())
			_, err := exec.PlaceOrder(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(exec.Orders()) != 0 {
				t.Error("invalid request should not be recorded")
			}
		})
	}
}

func TestSimulatedExecutor_CancelledContext(t *testing.T) {
	exec := newTestExecutor(newStubOracle())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.PlaceOrder(ctx, types.MarketStock("SPY", 1, types.SideBuy))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSimulatedExecutor_LimitOrders(t *testing.T) {
	tests := []struct {
		name       string
		option     bool
		side       types.Side
		limit      string
		wantStatus types.OrderStatus
	}{
		{name: "buy limit above quote fills", side: types.SideBuy, limit: "101", wantStatus: types.OrderStatusFilled},
		{name: "buy limit at quote fills", side: types.SideBuy, limit: "100", wantStatus: types.OrderStatusFilled},
		{name: "buy limit below quote rests", side: types.SideBuy, limit: "99", wantStatus: types.OrderStatusPending},
		{name: "sell limit above quote rests", side: types.SideSell, limit: "101", wantStatus: types.OrderStatusPending},
		{name: "sell limit at quote fills", side: types.SideSell, limit: "100", wantStatus: types.OrderStatusFilled},
		{name: "sell limit below quote fills", side: types.SideSell, limit: "99", wantStatus: types.OrderStatusFilled},
		{name: "option buy limit above premium fills", option: true, side: types.SideBuy, limit: "2.60", wantStatus: types.OrderStatusFilled},
		{name: "option buy limit below premium rests", option: true, side: types.SideBuy, limit: "2.40", wantStatus: types.OrderStatusPending},
		{name: "option sell limit below premium fills", option: true, side: types.SideSell, limit: "2.40", wantStatus: types.OrderStatusFilled},
		{name: "option sell limit above premium rests", option: true, side: types.SideSell, limit: "2.60", wantStatus: types.OrderStatusPending},
	}

	expiration := fixedNow.AddDate(0, 0, 30)
	strike := decimal.NewFromInt(100)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := newStubOracle()
			oracle.set("SPY", "100")
			oracle.options["SPYCALL"] = decimal.RequireFromString("2.50")
			exec := newTestExecutor(oracle)

			var req types.OrderRequest = types.LimitStock("SPY", 1, tt.side, decimal.RequireFromString(tt.limit))
			if tt.option {
				opt := types.MarketOption("SPY", strike, types.OptionCall, expiration, 1, tt.side)
				opt.Kind = types.OrderKindLimit
				opt.LimitPrice = decimal.NewNullDecimal(decimal.RequireFromString(tt.limit))
				req = opt
			}
			if tt.side == types.SideSell {
				held := types.OrderRequest(types.MarketStock("SPY", 1, types.SideBuy))
				if tt.option {
					held = types.MarketOption("SPY", strike, types.OptionCall, expiration, 1, types.SideBuy)
				}
				mustPlace(t, exec, held)
			}

			order := mustPlace(t, exec, req)

			if order.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", order.Status, tt.wantStatus)
			}
			if order.IsOption != tt.option {
				t.Errorf("IsOption = %v, want %v", order.IsOption, tt.option)
			}
			switch tt.wantStatus {
			case types.OrderStatusPending:
				if !order.FilledPrice.IsZero() {
					t.Errorf("pending order has FilledPrice %s", order.FilledPrice)
				}
				if len(exec.PendingOrders()) != 1 {
					t.Errorf("len(PendingOrders) = %d, want 1", len(exec.PendingOrders()))
				}
			case types.OrderStatusFilled:
				want := "100"
				if tt.option {
					want = "2.5"
				}
				if !order.FilledPrice.Equal(decimal.RequireFromString(want)) {
					t.Errorf("FilledPrice = %s, want %s", order.FilledPrice, want)
				}
			}
		})
	}
}

func TestSimulatedExecutor_OptionsKeyedByExpiration(t *testing.T) {
	oracle := newStubOracle()
	oracle.options["SPYCALL"] = decimal.RequireFromString("2.50")
	exec := newTestExecutor(oracle)

	strike := decimal.NewFromInt(450)
	near := fixedNow.AddDate(0, 0, 30)
	far := fixedNow.AddDate(0, 0, 60)

	a := mustPlace(t, exec, types.MarketOption("SPY", strike, types.OptionCall, near, 2, types.SideBuy))
	b := mustPlace(t, exec, types.MarketOption("SPY", strike, types.OptionCall, far, 3, types.SideBuy))

	if !a.IsOption || !b.IsOption {
		t.Fatal("option orders should be flagged IsOption")
	}
	if exec.Ledger().NumPositions() != 2 {
		t.Fatalf("NumPositions = %d, want 2 (different expirations)", exec.Ledger().NumPositions())
	}

	nearKey := types.OptionContract{Underlying: "SPY", Strike: strike, Expiration: near, Kind: types.OptionCall}.Key()
	pos, ok := exec.Ledger().Position(nearKey)
	if !ok {
		t.Fatal("missing near-dated position")
	}
	if pos.Kind != types.PositionOption || pos.OptionKind != types.OptionCall || pos.Quantity != 2 {
		t.Errorf("position = %+v", pos)
	}

	// 5 contracts at 2.50
	if !exec.Ledger().Cash().Equal(decimal.RequireFromString("99987.50")) {
		t.Errorf("Cash = %s, want 99987.50", exec.Ledger().Cash())
	}
}

func TestSimulatedExecutor_DaysToExpiry(t *testing.T) {
	exec := newTestExecutor(newStubOracle())

	tests := []struct {
		name       string
		expiration time.Time
		want       int
	}{
		{name: "unset uses default", expiration: time.Time{}, want: 30},
		{name: "future", expiration: fixedNow.AddDate(0, 0, 25), want: 25},
		{name: "past clamps to zero", expiration: fixedNow.AddDate(0, 0, -3), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exec.daysToExpiry(tt.expiration); got != tt.want {
				t.Errorf("daysToExpiry = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSimulatedExecutor_MarkToMarketAndSummary(t *testing.T) {
	oracle := newStubOracle()
	oracle.set("SPY", "100")
	exec := newTestExecutor(oracle)

	mustPlace(t, exec, types.MarketStock("SPY", 10, types.SideBuy))

	oracle.set("SPY", "110")
	summary := exec.Summary()
	if !summary.TotalPL.IsZero() {
		t.Errorf("TotalPL before mark = %s, want 0", summary.TotalPL)
	}

	exec.MarkToMarket()
	summary = exec.Summary()

	if !summary.PositionsValue.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("PositionsValue = %s, want 1100", summary.PositionsValue)
	}
	if !summary.TotalPL.Equal(decimal.NewFromInt(100)) {
		t.Errorf("TotalPL = %s, want 100", summary.TotalPL)
	}
	if !summary.TotalPLPercent.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("TotalPLPercent = %s, want 0.1", summary.TotalPLPercent)
	}
	if summary.NumPositions != 1 || summary.NumOrders != 1 {
		t.Errorf("NumPositions=%d NumOrders=%d, want 1/1", summary.NumPositions, summary.NumOrders)
	}
}

func TestSimulatedExecutor_ObserverAndReset(t *testing.T) {
	oracle := newStubOracle()
	oracle.set("SPY", "100")
	exec := newTestExecutor(oracle)

	var seen []types.OrderStatus
	exec.SetObserver(ObserverFunc(func(o types.Order) {
		seen = append(seen, o.Status)
	}))

	mustPlace(t, exec, types.MarketStock("SPY", 1, types.SideBuy))
	mustPlace(t, exec, types.MarketStock("SPY", 5, types.SideSell))

	if len(seen) != 2 || seen[0] != types.OrderStatusFilled || seen[1] != types.OrderStatusRejected {
		t.Errorf("observed %v, want [FILLED REJECTED]", seen)
	}

	exec.Reset()
	if !exec.Ledger().Cash().Equal(decimal.NewFromInt(100000)) {
		t.Errorf("Cash after reset = %s", exec.Ledger().Cash())
	}
	if len(exec.Orders()) != 0 || len(exec.History()) != 0 || exec.Ledger().NumPositions() != 0 {
		t.Error("Reset should clear orders, history and positions")
	}
}

func TestSimulatedExecutor_ReturnedOrderIsCopy(t *testing.T) {
	oracle := newStubOracle()
	oracle.set("SPY", "100")
	exec := newTestExecutor(oracle)

	order := mustPlace(t, exec, types.MarketStock("SPY", 1, types.SideBuy))
	order.Quantity = 999

	if exec.Orders()[0].Quantity != 1 {
		t.Error("mutating the returned order changed executor state")
	}
	if order.ID == "" {
		t.Error("order ID should be set")
	}
}
