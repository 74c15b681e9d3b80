// Package market provides the simulated price source used by the order
// matcher and the hypothesis harness.
//
// Prices follow a per-symbol random walk and option prices come from an
// intrinsic plus time-value heuristic. None of this is a pricing model:
// there are no Greeks, no implied volatility surface and no guarantee
// against arbitrage. It exists so that the ledger has realistic-looking
// numbers to work with.
package market

import (
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/types"
)

const (
	// DefaultVolatility is assigned to symbols missing from the seed table.
	DefaultVolatility = 0.02
	// Drift is the mean of each random-walk step.
	Drift = 0.0001
	// DefaultDaysToExpiry is used for option orders without an expiration.
	DefaultDaysToExpiry = 30

	minSeedPrice = 10.0
	maxSeedPrice = 500.0
	timeValueK   = 0.2
)

// MinTick is the smallest price the oracle ever returns.
var MinTick = decimal.RequireFromString("0.01")

// Quote seeds a symbol's starting price and daily volatility.
type Quote struct {
	Price      float64
	Volatility float64
}

// DefaultQuotes is the seed table the simulator starts from.
func DefaultQuotes() map[string]Quote {
	return map[string]Quote{
		"SPY":  {Price: 450.00, Volatility: 0.01},
		"QQQ":  {Price: 380.00, Volatility: 0.015},
		"IWM":  {Price: 200.00, Volatility: 0.02},
		"AAPL": {Price: 180.00, Volatility: 0.025},
		"MSFT": {Price: 420.00, Volatility: 0.02},
		"NVDA": {Price: 850.00, Volatility: 0.04},
		"TSLA": {Price: 250.00, Volatility: 0.05},
	}
}

// Oracle produces simulated prices. Reading a price advances it: there is
// no separate tick operation.
//
// An Oracle is owned by a single simulation session and is not safe for
// concurrent use.
type Oracle struct {
	rng        *rand.Rand
	prices     map[string]float64
	volatility map[string]float64
}

// NewOracle creates an oracle seeded with DefaultQuotes. The same seed
// always produces the same price path.
func NewOracle(seed uint64) *Oracle {
	return NewOracleWithQuotes(seed, DefaultQuotes())
}

// NewOracleWithQuotes creates an oracle with a custom seed table.
func NewOracleWithQuotes(seed uint64, quotes map[string]Quote) *Oracle {
	o := &Oracle{
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		prices:     make(map[string]float64, len(quotes)),
		volatility: make(map[string]float64, len(quotes)),
	}
	for sym, q := range quotes {
		o.prices[sym] = q.Price
		o.volatility[sym] = q.Volatility
	}
	return o
}

// Price advances the symbol one random-walk step and returns the new
// price rounded to the cent. Unknown symbols are seeded uniformly in
// [10, 500) with DefaultVolatility.
func (o *Oracle) Price(symbol string) decimal.Decimal {
	o.ensure(symbol)

	vol := o.volatility[symbol]
	change := Drift + vol*o.rng.NormFloat64()
	next := o.prices[symbol] * (1 + change)
	if next < MinTick.InexactFloat64() {
		next = MinTick.InexactFloat64()
	}
	o.prices[symbol] = next

	return roundPrice(next)
}

// OptionPrice reads (and therefore advances) the underlying and returns
// max(0, intrinsic) + time value, floored at MinTick.
func (o *Oracle) OptionPrice(underlying string, strike decimal.Decimal, kind types.OptionKind, daysToExpiry int) decimal.Decimal {
	spot := o.Price(underlying)
	return PriceOption(spot, strike, kind, daysToExpiry, o.volatility[underlying])
}

// Scale multiplies the stored price by factor without a random step.
// Used to bias the walk in one direction.
func (o *Oracle) Scale(symbol string, factor decimal.Decimal) {
	o.ensure(symbol)
	o.prices[symbol] *= factor.InexactFloat64()
}

// Last returns the stored price without advancing it.
func (o *Oracle) Last(symbol string) (decimal.Decimal, bool) {
	p, ok := o.prices[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return roundPrice(p), true
}

// Volatility returns the symbol's volatility, seeding it if unknown.
func (o *Oracle) Volatility(symbol string) float64 {
	o.ensure(symbol)
	return o.volatility[symbol]
}

func (o *Oracle) ensure(symbol string) {
	if _, ok := o.prices[symbol]; ok {
		return
	}
	o.prices[symbol] = minSeedPrice + o.rng.Float64()*(maxSeedPrice-minSeedPrice)
	o.volatility[symbol] = DefaultVolatility
}

// PriceOption is the option heuristic on its own:
//
//	intrinsic  = max(0, S-K) for calls, max(0, K-S) for puts
//	time value = days/365 * S * 0.2 * vol
//
// The result is rounded to the cent and never below MinTick.
func PriceOption(spot, strike decimal.Decimal, kind types.OptionKind, daysToExpiry int, vol float64) decimal.Decimal {
	var intrinsic decimal.Decimal
	if kind == types.OptionCall {
		intrinsic = spot.Sub(strike)
	} else {
		intrinsic = strike.Sub(spot)
	}
	if intrinsic.IsNegative() {
		intrinsic = decimal.Zero
	}
	if daysToExpiry < 0 {
		daysToExpiry = 0
	}

	timeValue := decimal.NewFromInt(int64(daysToExpiry)).
		Div(decimal.NewFromInt(365)).
		Mul(spot).
		Mul(decimal.NewFromFloat(timeValueK)).
		Mul(decimal.NewFromFloat(vol))

	price := intrinsic.Add(timeValue).Round(2)
	if price.LessThan(MinTick) {
		return MinTick
	}
	return price
}

func roundPrice(p float64) decimal.Decimal {
	return decimal.NewFromFloat(p).Round(2)
}
