package market

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/types"
)

func TestOracle_PriceAdvancesOnRead(t *testing.T) {
	o := NewOracle(42)

	first := o.Price("SPY")
	second := o.Price("SPY")

	if first.Equal(second) {
		t.Errorf("two consecutive reads returned %s; reads must advance the walk", first)
	}
}

func TestOracle_SameSeedSamePath(t *testing.T) {
	a := NewOracle(7)
	b := NewOracle(7)

	for i := 0; i < 50; i++ {
		pa, pb := a.Price("QQQ"), b.Price("QQQ")
		if !pa.Equal(pb) {
			t.Fatalf("step %d: %s != %s", i, pa, pb)
		}
	}
}

func TestOracle_UnknownSymbolSeeded(t *testing.T) {
	o := NewOracle(1)

	if _, ok := o.Last("ZZZZ"); ok {
		t.Fatal("unknown symbol should have no stored price")
	}

	p := o.Price("ZZZZ")
	// One step of a 2% walk cannot leave the seed range by much.
	if p.LessThan(decimal.NewFromInt(5)) || p.GreaterThan(decimal.NewFromInt(600)) {
		t.Errorf("seeded price %s outside plausible range", p)
	}
	if o.Volatility("ZZZZ") != DefaultVolatility {
		t.Errorf("Volatility = %f, want %f", o.Volatility("ZZZZ"), DefaultVolatility)
	}
}

// TestOracle_WalkStaysBounded checks the walk statistically: after M steps
// of volatility v the log price should be within a few standard deviations
// of the start.
func TestOracle_WalkStaysBounded(t *testing.T) {
	const steps = 250
	start := 450.0
	vol := 0.01
	bound := 6 * vol * math.Sqrt(steps)

	for seed := uint64(0); seed < 20; seed++ {
		o := NewOracle(seed)
		var last decimal.Decimal
		for i := 0; i < steps; i++ {
			last = o.Price("SPY")
		}
		move := math.Abs(math.Log(last.InexactFloat64() / start))
		if move > bound {
			t.Errorf("seed %d: log move %.4f exceeds %.4f", seed, move, bound)
		}
	}
}

func TestOracle_PriceRoundedToCent(t *testing.T) {
	o := NewOracle(3)
	for i := 0; i < 20; i++ {
		p := o.Price("TSLA")
		if !p.Equal(p.Round(2)) {
			t.Fatalf("price %s not rounded to cents", p)
		}
	}
}

func TestOracle_ScaleAndLast(t *testing.T) {
	o := NewOracleWithQuotes(1, map[string]Quote{"SPY": {Price: 100, Volatility: 0.01}})

	o.Scale("SPY", decimal.RequireFromString("1.10"))

	last, ok := o.Last("SPY")
	if !ok {
		t.Fatal("expected stored price")
	}
	if !last.Equal(decimal.NewFromInt(110)) {
		t.Errorf("Last = %s, want 110", last)
	}

	// Last does not advance.
	again, _ := o.Last("SPY")
	if !again.Equal(last) {
		t.Errorf("Last advanced the price: %s -> %s", last, again)
	}
}

func TestPriceOption(t *testing.T) {
	tests := []struct {
		name   string
		spot   string
		strike string
		kind   types.OptionKind
		days   int
		vol    float64
		want   string
	}{
		{
			// intrinsic 10, time value 365/365*450*0.2*0.01 = 0.9
			name: "ITM call", spot: "450", strike: "440", kind: types.OptionCall, days: 365, vol: 0.01, want: "10.9",
		},
		{
			name: "OTM call is time value only", spot: "450", strike: "460", kind: types.OptionCall, days: 365, vol: 0.01, want: "0.9",
		},
		{
			name: "ITM put", spot: "450", strike: "455", kind: types.OptionPut, days: 0, vol: 0.01, want: "5",
		},
		{
			name: "worthless floors at min tick", spot: "450", strike: "500", kind: types.OptionCall, days: 0, vol: 0.01, want: "0.01",
		},
		{
			name: "negative days treated as expired", spot: "450", strike: "500", kind: types.OptionCall, days: -3, vol: 0.01, want: "0.01",
		},
		{
			// 30/365*450*0.2*0.01 = 0.07397 -> 0.07
			name: "30 day OTM put", spot: "450", strike: "445", kind: types.OptionPut, days: 30, vol: 0.01, want: "0.07",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriceOption(
				decimal.RequireFromString(tt.spot),
				decimal.RequireFromString(tt.strike),
				tt.kind, tt.days, tt.vol,
			)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("PriceOption = %s, want %s", got, want)
			}
		})
	}
}

func TestOracle_OptionPriceAtLeastMinTick(t *testing.T) {
	o := NewOracle(11)
	for i := 0; i < 100; i++ {
		p := o.OptionPrice("SPY", decimal.NewFromInt(1000), types.OptionCall, 0)
		if p.LessThan(MinTick) {
			t.Fatalf("option price %s below min tick", p)
		}
	}
}
