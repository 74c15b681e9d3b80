package strategy

import (
	"errors"

	"github.com/shopspring/decimal"
)

// VolatilityName is the registry identifier of the volatility strategy.
const VolatilityName = "volatility"

const (
	highIVConfidence = 0.7
	lowIVConfidence  = 0.6
)

// VolatilityConfig holds configuration for the volatility strategy.
type VolatilityConfig struct {
	IVHighThreshold float64 // buy puts above this IV percentile
	IVLowThreshold  float64 // buy calls below this IV percentile
	DeltaTarget     float64 // recorded only, strikes are ATM
	HoldingDays     int
}

// DefaultVolatilityConfig returns sensible defaults.
func DefaultVolatilityConfig() VolatilityConfig {
	return VolatilityConfig{
		IVHighThreshold: 80,
		IVLowThreshold:  20,
		DeltaTarget:     0.30,
		HoldingDays:     7,
	}
}

// VolatilityConfigFromParams overlays params on the defaults.
func VolatilityConfigFromParams(p Parameters) VolatilityConfig {
	cfg := DefaultVolatilityConfig()
	cfg.IVHighThreshold = p.Get("iv_high_threshold", cfg.IVHighThreshold)
	cfg.IVLowThreshold = p.Get("iv_low_threshold", cfg.IVLowThreshold)
	cfg.DeltaTarget = p.Get("delta_target", cfg.DeltaTarget)
	cfg.HoldingDays = int(p.Get("holding_period_days", float64(cfg.HoldingDays)))
	return cfg
}

// Volatility trades an IV percentile cycle: puts when IV is rich, calls
// when it is cheap. Both legs are bought ATM.
type Volatility struct {
	cfg VolatilityConfig
}

// NewVolatility creates a new volatility strategy.
func NewVolatility(cfg VolatilityConfig) (*Volatility, error) {
	if cfg.IVLowThreshold > cfg.IVHighThreshold {
		return nil, errors.New("iv_low_threshold must not exceed iv_high_threshold")
	}
	if cfg.HoldingDays < 0 {
		return nil, errors.New("holding_period_days must be non-negative")
	}
	return &Volatility{cfg: cfg}, nil
}

// IVPercentile returns the synthetic IV percentile for trade i, stepping
// by 7 modulo 100.
func IVPercentile(i int) float64 {
	return float64((i * 7) % 100)
}

// Evaluate implements Strategy.
func (v *Volatility) Evaluate(i, n int) (Signal, bool) {
	iv := IVPercentile(i)

	switch {
	case iv > v.cfg.IVHighThreshold:
		return NewSignalBuilder("iv_percentile", iv).Put().WithConfidence(highIVConfidence).Build(), true
	case iv < v.cfg.IVLowThreshold:
		return NewSignalBuilder("iv_percentile", iv).Call().WithConfidence(lowIVConfidence).Build(), true
	default:
		return Signal{}, false
	}
}

// Strike returns the at-the-money strike.
func (v *Volatility) Strike(_ Signal, spot decimal.Decimal) decimal.Decimal {
	return roundStrike(spot)
}

// Plan implements Strategy.
func (v *Volatility) Plan() Plan {
	return Plan{
		Contracts:        1,
		HoldingDays:      v.cfg.HoldingDays,
		ExpiryDays:       30,
		ExitDaysToExpiry: 23,
	}
}

// DailyBias implements Strategy. Volatility does not bias prices.
func (v *Volatility) DailyBias(Signal) (decimal.Decimal, bool) {
	return decimal.Zero, false
}

// Name implements Strategy.
func (v *Volatility) Name() string {
	return VolatilityName
}
