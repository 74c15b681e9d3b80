package hypothesis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/execution"
	"github.com/tathienbao/options-lab/internal/market"
	"github.com/tathienbao/options-lab/internal/strategy"
	"github.com/tathienbao/options-lab/internal/types"
)

// DefaultProgressInterval is how many iterations pass between progress
// callbacks.
const DefaultProgressInterval = 20

// Config holds harness configuration.
type Config struct {
	InitialCash      decimal.Decimal
	Seed             uint64
	Underlying       string
	Quotes           map[string]market.Quote // nil uses market.DefaultQuotes
	ProgressInterval int
	Clock            func() time.Time
}

// DefaultConfig returns the default harness configuration.
func DefaultConfig() Config {
	return Config{
		InitialCash:      decimal.NewFromInt(100000),
		Seed:             1,
		Underlying:       "SPY",
		ProgressInterval: DefaultProgressInterval,
		Clock:            time.Now,
	}
}

// ProgressUpdate reports how far a run has got.
type ProgressUpdate struct {
	Test      string
	Iteration int // iterations completed, including ones without a signal
	Total     int
	Trades    int
}

// ProgressCallback is called every ProgressInterval iterations.
type ProgressCallback func(update ProgressUpdate)

// ExecutorFactory builds the executor for one run. Orders are priced from
// oracle and stamped at start.
type ExecutorFactory func(oracle execution.PriceOracle, start time.Time) execution.Executor

// Harness runs hypothesis tests. Every run gets its own oracle and
// simulator, so runs never share price paths or ledgers.
type Harness struct {
	cfg        Config
	logger     *slog.Logger
	progressCb ProgressCallback
	observer   execution.OrderObserver
	executor   ExecutorFactory
}

// NewHarness creates a new harness.
func NewHarness(cfg Config, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.Underlying == "" {
		cfg.Underlying = "SPY"
	}
	return &Harness{
		cfg:    cfg,
		logger: logger,
	}
}

// SetProgressCallback sets a callback for UI updates.
func (h *Harness) SetProgressCallback(cb ProgressCallback) {
	h.progressCb = cb
}

// SetOrderObserver forwards every simulator order to o.
func (h *Harness) SetOrderObserver(o execution.OrderObserver) {
	h.observer = o
}

// SetExecutorFactory replaces the per-run simulator. The order observer
// is only attached to the default simulator.
func (h *Harness) SetExecutorFactory(f ExecutorFactory) {
	h.executor = f
}

func (h *Harness) newExecutor(oracle execution.PriceOracle, start time.Time) execution.Executor {
	if h.executor != nil {
		return h.executor(oracle, start)
	}
	sim := execution.NewSimulatedExecutor(execution.SimulatedConfig{
		InitialCash: h.cfg.InitialCash,
		Clock:       func() time.Time { return start },
	}, oracle, h.logger)
	if h.observer != nil {
		sim.SetObserver(h.observer)
	}
	return sim
}

// Run executes numTrades iterations of test's strategy and finalizes it.
//
// Iterations whose synthetic condition does not cross the entry threshold
// are skipped. So are iterations whose entry order is rejected: no trade
// is recorded for them. Cancellation is checked between iterations.
func (h *Harness) Run(ctx context.Context, test *Test, numTrades int) error {
	if numTrades <= 0 {
		return fmt.Errorf("%w: %d", types.ErrInvalidTrades, numTrades)
	}

	strat, err := strategy.New(test.Strategy, test.Parameters)
	if err != nil {
		return err
	}

	start := h.cfg.Clock()
	if err := test.start(start); err != nil {
		return err
	}

	quotes := h.cfg.Quotes
	if quotes == nil {
		quotes = market.DefaultQuotes()
	}
	oracle := market.NewOracleWithQuotes(h.cfg.Seed, quotes)
	exec := h.newExecutor(oracle, start)

	h.logger.Info("hypothesis test started",
		"name", test.Name,
		"strategy", test.Strategy,
		"trades", numTrades,
		"seed", h.cfg.Seed,
	)

	underlying := h.cfg.Underlying
	plan := strat.Plan()
	multiplier := decimal.NewFromInt(int64(plan.Multiplier()))
	expiration := start.AddDate(0, 0, plan.ExpiryDays)
	skipped := 0

	for i := 0; i < numTrades; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		sig, ok := strat.Evaluate(i, numTrades)
		if ok {
			spot := oracle.Price(underlying)
			strike := strat.Strike(sig, spot)

			req := types.OptionOrder{
				Contract: types.OptionContract{
					Underlying: underlying,
					Strike:     strike,
					Expiration: expiration,
					Kind:       sig.Kind,
				},
				Quantity: plan.Contracts,
				Side:     types.SideBuy,
				Kind:     types.OrderKindMarket,
			}
			order, err := exec.PlaceOrder(ctx, req)
			if err != nil {
				return fmt.Errorf("place entry order: %w", err)
			}

			if order.Filled() {
				entry := order.FilledPrice

				for d := 0; d < plan.HoldingDays; d++ {
					if factor, biased := strat.DailyBias(sig); biased {
						oracle.Scale(underlying, factor)
					}
					oracle.Price(underlying)
				}

				exit := oracle.OptionPrice(underlying, strike, sig.Kind, plan.ExitDaysToExpiry)
				test.record(newTradeRecord(sig, strike, plan.Contracts, entry, exit, multiplier))
			} else {
				skipped++
				h.logger.Warn("entry order not filled, skipping iteration",
					"test", test.Name,
					"iteration", i,
					"status", order.Status.String(),
					"reason", order.RejectReason,
				)
			}
		}

		if h.progressCb != nil && (i+1)%h.cfg.ProgressInterval == 0 {
			h.progressCb(ProgressUpdate{
				Test:      test.Name,
				Iteration: i + 1,
				Total:     numTrades,
				Trades:    len(test.Trades),
			})
		}
	}

	test.Finalize()

	h.logger.Info("hypothesis test finished",
		"name", test.Name,
		"trades", test.Metrics.TotalTrades,
		"skipped", skipped,
		"win_rate", test.Metrics.WinRate.StringFixed(4),
		"avg_return", test.Metrics.AvgReturn.StringFixed(4),
		"successful", test.IsSuccessful(),
		"cash", exec.Ledger().Cash().StringFixed(2),
	)

	return nil
}

func newTradeRecord(sig strategy.Signal, strike decimal.Decimal, contracts int, entry, exit, multiplier decimal.Decimal) TradeRecord {
	diff := exit.Sub(entry)
	ret := decimal.Zero
	if !entry.IsZero() {
		ret = diff.Div(entry)
	}
	return TradeRecord{
		Signal:        sig.Kind,
		Strike:        strike,
		Contracts:     contracts,
		EntryPrice:    entry,
		ExitPrice:     exit,
		PnL:           diff.Mul(multiplier),
		ReturnPct:     ret,
		ConditionName: sig.ConditionName,
		Condition:     sig.Condition,
		Confidence:    sig.Confidence,
	}
}
