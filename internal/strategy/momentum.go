package strategy

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/types"
)

// MomentumName is the registry identifier of the momentum strategy.
const MomentumName = "momentum"

// MomentumConfig holds configuration for the momentum strategy.
type MomentumConfig struct {
	RSIOversold     float64 // buy calls below this RSI
	RSIOverbought   float64 // buy puts above this RSI
	VolumeThreshold float64 // recorded only, the synthetic feed has no volume
	HoldingDays     int
	StrikeOffset    decimal.Decimal // distance of the OTM strike from spot
}

// DefaultMomentumConfig returns sensible defaults.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		RSIOversold:     30,
		RSIOverbought:   70,
		VolumeThreshold: 1.5,
		HoldingDays:     5,
		StrikeOffset:    decimal.NewFromInt(5),
	}
}

// MomentumConfigFromParams overlays params on the defaults.
func MomentumConfigFromParams(p Parameters) MomentumConfig {
	cfg := DefaultMomentumConfig()
	cfg.RSIOversold = p.Get("rsi_oversold", cfg.RSIOversold)
	cfg.RSIOverbought = p.Get("rsi_overbought", cfg.RSIOverbought)
	cfg.VolumeThreshold = p.Get("volume_threshold", cfg.VolumeThreshold)
	cfg.HoldingDays = int(p.Get("holding_period_days", float64(cfg.HoldingDays)))
	cfg.StrikeOffset = decimal.NewFromFloat(p.Get("strike_offset", cfg.StrikeOffset.InexactFloat64()))
	return cfg
}

// Momentum buys calls when a cycling RSI is oversold and puts when it is
// overbought.
type Momentum struct {
	cfg MomentumConfig
}

// NewMomentum creates a new momentum strategy.
func NewMomentum(cfg MomentumConfig) (*Momentum, error) {
	if cfg.RSIOversold <= 0 || cfg.RSIOversold > 100 {
		return nil, errors.New("rsi_oversold must be in (0, 100]")
	}
	if cfg.RSIOverbought < 0 || cfg.RSIOverbought >= 100 {
		return nil, errors.New("rsi_overbought must be in [0, 100)")
	}
	if cfg.RSIOversold > cfg.RSIOverbought {
		return nil, errors.New("rsi_oversold must not exceed rsi_overbought")
	}
	if cfg.HoldingDays < 0 {
		return nil, errors.New("holding_period_days must be non-negative")
	}
	return &Momentum{cfg: cfg}, nil
}

// RSI returns the synthetic RSI for trade i. It cycles through
// 30, 37, ..., 93 every ten trades.
func RSI(i int) float64 {
	return 30 + 70*float64(i%10)/10
}

// Evaluate implements Strategy.
func (m *Momentum) Evaluate(i, n int) (Signal, bool) {
	rsi := RSI(i)

	switch {
	case rsi < m.cfg.RSIOversold:
		return NewSignalBuilder("rsi", rsi).
			Call().
			WithConfidence((m.cfg.RSIOversold - rsi) / m.cfg.RSIOversold).
			Build(), true
	case rsi > m.cfg.RSIOverbought:
		return NewSignalBuilder("rsi", rsi).
			Put().
			WithConfidence((rsi - m.cfg.RSIOverbought) / (100 - m.cfg.RSIOverbought)).
			Build(), true
	default:
		return Signal{}, false
	}
}

// Strike returns spot plus the offset for calls and minus it for puts.
func (m *Momentum) Strike(sig Signal, spot decimal.Decimal) decimal.Decimal {
	if sig.Kind == types.OptionCall {
		return roundStrike(spot.Add(m.cfg.StrikeOffset))
	}
	return roundStrike(spot.Sub(m.cfg.StrikeOffset))
}

// Plan implements Strategy.
func (m *Momentum) Plan() Plan {
	return Plan{
		Contracts:        1,
		HoldingDays:      m.cfg.HoldingDays,
		ExpiryDays:       30,
		ExitDaysToExpiry: 25,
	}
}

// DailyBias implements Strategy. Momentum does not bias prices.
func (m *Momentum) DailyBias(Signal) (decimal.Decimal, bool) {
	return decimal.Zero, false
}

// Name implements Strategy.
func (m *Momentum) Name() string {
	return MomentumName
}
