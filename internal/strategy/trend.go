package strategy

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/types"
)

// TrendName is the registry identifier of the trend following strategy.
const TrendName = "trend_following"

// TrendConfig holds configuration for the trend following strategy.
type TrendConfig struct {
	EntryStrength  float64 // |trend| must exceed this to trade
	MaxConfidence  float64
	StrikePerTrend decimal.Decimal // strike moves this many dollars per unit of trend
	UpBias         decimal.Decimal // daily factor while holding calls
	DownBias       decimal.Decimal // daily factor while holding puts
	HoldingDays    int

	// Recorded only, the synthetic trend replaces the crossover.
	FastMA        int
	SlowMA        int
	ATRMultiplier float64
}

// DefaultTrendConfig returns sensible defaults.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		EntryStrength:  0.2,
		MaxConfidence:  0.9,
		StrikePerTrend: decimal.NewFromInt(10),
		UpBias:         decimal.RequireFromString("1.002"),
		DownBias:       decimal.RequireFromString("0.998"),
		HoldingDays:    10,
		FastMA:         20,
		SlowMA:         50,
		ATRMultiplier:  2.0,
	}
}

// TrendConfigFromParams overlays params on the defaults.
func TrendConfigFromParams(p Parameters) TrendConfig {
	cfg := DefaultTrendConfig()
	cfg.EntryStrength = p.Get("entry_strength", cfg.EntryStrength)
	cfg.HoldingDays = int(p.Get("holding_period_days", float64(cfg.HoldingDays)))
	cfg.FastMA = int(p.Get("fast_ma", float64(cfg.FastMA)))
	cfg.SlowMA = int(p.Get("slow_ma", float64(cfg.SlowMA)))
	cfg.ATRMultiplier = p.Get("atr_multiplier", cfg.ATRMultiplier)
	return cfg
}

// TrendFollowing buys calls in a synthetic uptrend and puts in a
// downtrend, then nudges the underlying in the trade's direction while
// holding.
type TrendFollowing struct {
	cfg TrendConfig
}

// NewTrendFollowing creates a new trend following strategy.
func NewTrendFollowing(cfg TrendConfig) (*TrendFollowing, error) {
	if cfg.EntryStrength < 0 || cfg.EntryStrength >= 1 {
		return nil, errors.New("entry_strength must be in [0, 1)")
	}
	if cfg.HoldingDays < 0 {
		return nil, errors.New("holding_period_days must be non-negative")
	}
	return &TrendFollowing{cfg: cfg}, nil
}

// TrendStrength ramps linearly from -1 at trade 0 towards +1 at trade n.
func TrendStrength(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return -1 + 2*float64(i)/float64(n)
}

// Evaluate implements Strategy.
func (t *TrendFollowing) Evaluate(i, n int) (Signal, bool) {
	trend := TrendStrength(i, n)
	confidence := math.Min(t.cfg.MaxConfidence, math.Abs(trend))

	switch {
	case trend > t.cfg.EntryStrength:
		return NewSignalBuilder("trend_strength", trend).Call().WithConfidence(confidence).Build(), true
	case trend < -t.cfg.EntryStrength:
		return NewSignalBuilder("trend_strength", trend).Put().WithConfidence(confidence).Build(), true
	default:
		return Signal{}, false
	}
}

// Strike shifts the strike with the trend so both legs start out of the
// money.
func (t *TrendFollowing) Strike(sig Signal, spot decimal.Decimal) decimal.Decimal {
	shift := t.cfg.StrikePerTrend.Mul(decimal.NewFromFloat(sig.Condition))
	return roundStrike(spot.Add(shift))
}

// Plan implements Strategy.
func (t *TrendFollowing) Plan() Plan {
	return Plan{
		Contracts:        2,
		HoldingDays:      t.cfg.HoldingDays,
		ExpiryDays:       45,
		ExitDaysToExpiry: 35,
	}
}

// DailyBias implements Strategy.
func (t *TrendFollowing) DailyBias(sig Signal) (decimal.Decimal, bool) {
	if sig.Kind == types.OptionCall {
		return t.cfg.UpBias, true
	}
	return t.cfg.DownBias, true
}

// Name implements Strategy.
func (t *TrendFollowing) Name() string {
	return TrendName
}
