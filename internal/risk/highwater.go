// Package risk tracks drawdown over a sequence of trade results.
package risk

import (
	"github.com/shopspring/decimal"
)

// HighWaterMark tracks cumulative P&L, its running peak and the worst
// drawdown seen so far.
//
// The peak starts at zero, so losses before the first profit do not count
// as drawdown: drawdown is only defined once the peak is positive.
type HighWaterMark struct {
	cumulative  decimal.Decimal
	peak        decimal.Decimal
	maxDrawdown decimal.Decimal
}

// NewHighWaterMark creates a tracker at zero P&L.
func NewHighWaterMark() *HighWaterMark {
	return &HighWaterMark{}
}

// Add books one trade's P&L and returns the drawdown after it.
func (h *HighWaterMark) Add(pnl decimal.Decimal) decimal.Decimal {
	h.cumulative = h.cumulative.Add(pnl)
	if h.cumulative.GreaterThan(h.peak) {
		h.peak = h.cumulative
	}

	dd := h.Drawdown()
	if dd.GreaterThan(h.maxDrawdown) {
		h.maxDrawdown = dd
	}
	return dd
}

// Cumulative returns the running P&L total.
func (h *HighWaterMark) Cumulative() decimal.Decimal {
	return h.cumulative
}

// Peak returns the highest cumulative P&L seen.
func (h *HighWaterMark) Peak() decimal.Decimal {
	return h.peak
}

// Drawdown returns (peak - cumulative) / peak, or zero when the peak is
// not positive.
// A value of 0.15 means 15% below the peak.
func (h *HighWaterMark) Drawdown() decimal.Decimal {
	if !h.peak.IsPositive() {
		return decimal.Zero
	}
	if h.cumulative.GreaterThanOrEqual(h.peak) {
		return decimal.Zero
	}
	return h.peak.Sub(h.cumulative).Div(h.peak)
}

// MaxDrawdown returns the largest drawdown observed.
func (h *HighWaterMark) MaxDrawdown() decimal.Decimal {
	return h.maxDrawdown
}

// Reset returns the tracker to zero.
func (h *HighWaterMark) Reset() {
	h.cumulative = decimal.Zero
	h.peak = decimal.Zero
	h.maxDrawdown = decimal.Zero
}

// MaxDrawdown computes the maximum drawdown of a P&L sequence.
func MaxDrawdown(pnls []decimal.Decimal) decimal.Decimal {
	h := NewHighWaterMark()
	for _, p := range pnls {
		h.Add(p)
	}
	return h.MaxDrawdown()
}
