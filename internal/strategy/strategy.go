// Package strategy implements the synthetic-condition option strategies
// driven by the hypothesis harness.
package strategy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/types"
)

// Parameters are the numeric knobs of a strategy, keyed by name. They are
// written verbatim into result artifacts.
type Parameters map[string]float64

// Get returns the named parameter or def when absent.
func (p Parameters) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Clone returns a copy of p.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Signal is an entry decision for one trade index.
type Signal struct {
	Kind          types.OptionKind
	ConditionName string  // e.g. "rsi"
	Condition     float64 // the synthetic value that triggered the signal
	Confidence    float64
}

// Plan describes how a signal is traded.
type Plan struct {
	Contracts        int
	HoldingDays      int
	ExpiryDays       int // days from entry to expiration
	ExitDaysToExpiry int // days to expiry used for the exit quote
}

// Multiplier returns the P&L multiplier: 100 shares per contract.
func (p Plan) Multiplier() int {
	return 100 * p.Contracts
}

// Strategy generates option trades from a synthetic market condition.
// Strategies are pure functions of the trade index and hold no state
// between calls.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string

	// Evaluate derives the synthetic condition for trade i of n and
	// returns a signal when it crosses an entry threshold.
	Evaluate(i, n int) (Signal, bool)

	// Strike returns the strike to buy for sig given the underlying price.
	Strike(sig Signal, spot decimal.Decimal) decimal.Decimal

	// Plan returns sizing and timing.
	Plan() Plan

	// DailyBias returns the factor applied to the underlying before each
	// holding day. ok is false when the strategy does not bias prices.
	DailyBias(sig Signal) (factor decimal.Decimal, ok bool)
}

// SignalBuilder helps construct signals with consistent defaults.
type SignalBuilder struct {
	signal Signal
}

// NewSignalBuilder creates a builder for a condition value.
func NewSignalBuilder(conditionName string, condition float64) *SignalBuilder {
	return &SignalBuilder{
		signal: Signal{
			ConditionName: conditionName,
			Condition:     condition,
		},
	}
}

// Call sets the signal to buy calls.
func (b *SignalBuilder) Call() *SignalBuilder {
	b.signal.Kind = types.OptionCall
	return b
}

// Put sets the signal to buy puts.
func (b *SignalBuilder) Put() *SignalBuilder {
	b.signal.Kind = types.OptionPut
	return b
}

// WithConfidence sets the signal confidence.
func (b *SignalBuilder) WithConfidence(confidence float64) *SignalBuilder {
	b.signal.Confidence = confidence
	return b
}

// Build returns the constructed signal.
func (b *SignalBuilder) Build() Signal {
	return b.signal
}

// Definition is a named, parameterized hypothesis about a strategy.
type Definition struct {
	Name            string
	Description     string
	Strategy        string
	NumTrades       int
	Parameters      Parameters
	SuccessCriteria map[string]float64
}

type factory func(Parameters) (Strategy, error)

var registry = map[string]factory{
	MomentumName: func(p Parameters) (Strategy, error) {
		return NewMomentum(MomentumConfigFromParams(p))
	},
	VolatilityName: func(p Parameters) (Strategy, error) {
		return NewVolatility(VolatilityConfigFromParams(p))
	},
	TrendName: func(p Parameters) (Strategy, error) {
		return NewTrendFollowing(TrendConfigFromParams(p))
	},
}

// New builds the named strategy from parameters. Missing parameters take
// their defaults.
func New(name string, params Parameters) (Strategy, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownStrategy, name)
	}
	s, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// Names returns the registered strategy identifiers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the built-in hypotheses in run order.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        "Momentum Options Strategy",
			Description: "Buy CALL options when RSI < 30 and volume spike, PUT when RSI > 70",
			Strategy:    MomentumName,
			NumTrades:   50,
			Parameters: Parameters{
				"rsi_oversold":        30,
				"rsi_overbought":      70,
				"volume_threshold":    1.5,
				"holding_period_days": 5,
			},
			SuccessCriteria: map[string]float64{
				"win_rate":   0.55,
				"avg_return": 0.02,
			},
		},
		{
			Name:        "Volatility Premium Capture",
			Description: "Sell options when IV percentile > 80, buy when < 20",
			Strategy:    VolatilityName,
			NumTrades:   50,
			Parameters: Parameters{
				"iv_high_threshold":   80,
				"iv_low_threshold":    20,
				"delta_target":        0.30,
				"holding_period_days": 7,
			},
			SuccessCriteria: map[string]float64{
				"win_rate":   0.60,
				"avg_return": 0.015,
			},
		},
		{
			Name:        "Trend Following Options",
			Description: "Buy CALL in uptrends, PUT in downtrends using MA crossovers",
			Strategy:    TrendName,
			NumTrades:   50,
			Parameters: Parameters{
				"fast_ma":             20,
				"slow_ma":             50,
				"atr_multiplier":      2.0,
				"holding_period_days": 10,
			},
			SuccessCriteria: map[string]float64{
				"win_rate":   0.52,
				"avg_return": 0.03,
			},
		},
	}
}

// roundStrike rounds a price to a whole-dollar strike, half to even.
func roundStrike(p decimal.Decimal) decimal.Decimal {
	return p.RoundBank(0)
}
