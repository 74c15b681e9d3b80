package risk

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestHighWaterMark_New(t *testing.T) {
	h := NewHighWaterMark()

	if !h.Cumulative().IsZero() || !h.Peak().IsZero() {
		t.Errorf("new tracker = %s/%s, want 0/0", h.Cumulative(), h.Peak())
	}
	if !h.Drawdown().IsZero() || !h.MaxDrawdown().IsZero() {
		t.Errorf("new tracker drawdown = %s/%s, want 0/0", h.Drawdown(), h.MaxDrawdown())
	}
}

func TestHighWaterMark_Add(t *testing.T) {
	tests := []struct {
		name           string
		pnls           []string
		wantCumulative string
		wantPeak       string
		wantDrawdown   string
		wantMax        string
	}{
		{
			name:           "only gains",
			pnls:           []string{"100", "50"},
			wantCumulative: "150",
			wantPeak:       "150",
			wantDrawdown:   "0",
			wantMax:        "0",
		},
		{
			name:           "losses before any gain are not drawdown",
			pnls:           []string{"-100", "-50"},
			wantCumulative: "-150",
			wantPeak:       "0",
			wantDrawdown:   "0",
			wantMax:        "0",
		},
		{
			name:           "gain then loss",
			pnls:           []string{"100", "-25"},
			wantCumulative: "75",
			wantPeak:       "100",
			wantDrawdown:   "0.25",
			wantMax:        "0.25",
		},
		{
			name:           "recovery keeps the max",
			pnls:           []string{"100", "-50", "30"},
			wantCumulative: "80",
			wantPeak:       "100",
			wantDrawdown:   "0.2",
			wantMax:        "0.5",
		},
		{
			name:           "new peak resets current drawdown",
			pnls:           []string{"100", "-50", "100"},
			wantCumulative: "150",
			wantPeak:       "150",
			wantDrawdown:   "0",
			wantMax:        "0.5",
		},
		{
			name:           "falling below zero exceeds 100%",
			pnls:           []string{"100", "-150"},
			wantCumulative: "-50",
			wantPeak:       "100",
			wantDrawdown:   "1.5",
			wantMax:        "1.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHighWaterMark()
			for _, p := range tt.pnls {
				h.Add(decimal.RequireFromString(p))
			}

			check := func(label string, got decimal.Decimal, want string) {
				if !got.Equal(decimal.RequireFromString(want)) {
					t.Errorf("%s = %s, want %s", label, got, want)
				}
			}
			check("Cumulative()", h.Cumulative(), tt.wantCumulative)
			check("Peak()", h.Peak(), tt.wantPeak)
			check("Drawdown()", h.Drawdown(), tt.wantDrawdown)
			check("MaxDrawdown()", h.MaxDrawdown(), tt.wantMax)
		})
	}
}

func TestHighWaterMark_AddReturnsDrawdown(t *testing.T) {
	h := NewHighWaterMark()
	h.Add(decimal.NewFromInt(200))

	dd := h.Add(decimal.NewFromInt(-50))
	if !dd.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("Add(-50) = %s, want 0.25", dd)
	}
}

func TestHighWaterMark_Reset(t *testing.T) {
	h := NewHighWaterMark()
	h.Add(decimal.NewFromInt(100))
	h.Add(decimal.NewFromInt(-60))

	h.Reset()

	if !h.Cumulative().IsZero() || !h.Peak().IsZero() || !h.MaxDrawdown().IsZero() {
		t.Errorf("after Reset: %s/%s/%s, want zeros", h.Cumulative(), h.Peak(), h.MaxDrawdown())
	}
}

func TestMaxDrawdown(t *testing.T) {
	pnls := []decimal.Decimal{
		decimal.NewFromInt(50),
		decimal.NewFromInt(50),
		decimal.NewFromInt(-80),
		decimal.NewFromInt(10),
	}

	// peak 100, trough 20
	if got := MaxDrawdown(pnls); !got.Equal(decimal.RequireFromString("0.8")) {
		t.Errorf("MaxDrawdown = %s, want 0.8", got)
	}
	if got := MaxDrawdown(nil); !got.IsZero() {
		t.Errorf("MaxDrawdown(nil) = %s, want 0", got)
	}
}
