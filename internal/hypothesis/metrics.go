package hypothesis

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/risk"
)

// tradingDays annualizes per-trade Sharpe and Sortino ratios.
const tradingDays = 252

// Metrics are the aggregate results of a hypothesis test. Ratios are
// fractions: 0.55 means 55%.
type Metrics struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       decimal.Decimal
	AvgReturn     decimal.Decimal
	TotalReturn   decimal.Decimal // sum of per-trade returns
	ProfitFactor  decimal.Decimal // gains / |losses|; the gains sum when nothing lost
	MaxDrawdown   decimal.Decimal // over cumulative P&L
	SharpeRatio   decimal.Decimal

	// Reported alongside the result, not used in success criteria.
	AverageWin   decimal.Decimal
	AverageLoss  decimal.Decimal
	Expectancy   decimal.Decimal
	SortinoRatio decimal.Decimal
}

// Calculate computes all metrics for a trade list. Every metric is zero
// when there are no trades; degenerate denominators also yield zero.
func Calculate(trades []TradeRecord) Metrics {
	var m Metrics
	if len(trades) == 0 {
		return m
	}

	returns := make([]decimal.Decimal, len(trades))
	pnls := make([]decimal.Decimal, len(trades))
	for i, t := range trades {
		returns[i] = t.ReturnPct
		pnls[i] = t.PnL
		m.TotalReturn = m.TotalReturn.Add(t.ReturnPct)
		if t.Win() {
			m.WinningTrades++
		} else {
			m.LosingTrades++
		}
	}

	n := decimal.NewFromInt(int64(len(trades)))
	m.TotalTrades = len(trades)
	m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).Div(n)
	m.AvgReturn = m.TotalReturn.Div(n)
	m.ProfitFactor = profitFactor(pnls)
	m.MaxDrawdown = risk.MaxDrawdown(pnls)
	m.SharpeRatio = sharpeRatio(returns)

	m.AverageWin = averageWin(pnls)
	m.AverageLoss = averageLoss(pnls)
	m.Expectancy = m.WinRate.Mul(m.AverageWin).Add(decimal.NewFromInt(1).Sub(m.WinRate).Mul(m.AverageLoss))
	m.SortinoRatio = sortinoRatio(returns)

	return m
}

// sharpeRatio = mean / stdev * sqrt(252), over per-trade returns.
func sharpeRatio(returns []decimal.Decimal) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}

	stdDev := standardDeviation(returns)
	if stdDev.IsZero() {
		return decimal.Zero
	}

	sqrt252 := decimal.NewFromFloat(math.Sqrt(tradingDays))
	return mean(returns).Div(stdDev).Mul(sqrt252)
}

// sortinoRatio uses the deviation of losing returns only.
func sortinoRatio(returns []decimal.Decimal) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}

	downsideDev := downsideDeviation(returns, decimal.Zero)
	if downsideDev.IsZero() {
		return decimal.Zero
	}

	sqrt252 := decimal.NewFromFloat(math.Sqrt(tradingDays))
	return mean(returns).Div(downsideDev).Mul(sqrt252)
}

func profitFactor(pnls []decimal.Decimal) decimal.Decimal {
	gains := decimal.Zero
	losses := decimal.Zero

	for _, p := range pnls {
		if p.IsPositive() {
			gains = gains.Add(p)
		} else if p.IsNegative() {
			losses = losses.Add(p.Abs())
		}
	}

	if losses.IsZero() {
		return gains
	}
	return gains.Div(losses)
}

func averageWin(pnls []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	count := 0
	for _, p := range pnls {
		if p.IsPositive() {
			total = total.Add(p)
			count++
		}
	}
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count)))
}

// averageLoss is negative; flat trades count as losses.
func averageLoss(pnls []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	count := 0
	for _, p := range pnls {
		if !p.IsPositive() {
			total = total.Add(p)
			count++
		}
	}
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count)))
}

// Helper: mean of decimal slice.
func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}

	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// Helper: sample standard deviation of decimal slice.
func standardDeviation(values []decimal.Decimal) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}

	m := mean(values)
	sumSquares := decimal.Zero

	for _, v := range values {
		diff := v.Sub(m)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}

	variance := sumSquares.Div(decimal.NewFromInt(int64(len(values) - 1)))

	// sqrt using float conversion
	varianceFloat := variance.InexactFloat64()
	if varianceFloat <= 0 {
		return decimal.Zero
	}

	return decimal.NewFromFloat(math.Sqrt(varianceFloat))
}

// Helper: downside deviation (std dev of returns below target).
func downsideDeviation(returns []decimal.Decimal, target decimal.Decimal) decimal.Decimal {
	below := make([]decimal.Decimal, 0)

	for _, r := range returns {
		if r.LessThan(target) {
			below = append(below, r)
		}
	}

	if len(below) < 2 {
		return decimal.Zero
	}

	return standardDeviation(below)
}
