// Package hypothesis runs parameterized option strategies against the
// simulated market and scores them against declared success criteria.
package hypothesis

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/strategy"
	"github.com/tathienbao/options-lab/internal/types"
)

// State is the lifecycle stage of a Test.
type State int

const (
	StateConfigured State = iota
	StateRunning
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "CONFIGURED"
	case StateRunning:
		return "RUNNING"
	case StateFinalized:
		return "FINALIZED"
	default:
		return "UNKNOWN"
	}
}

// Metric names accepted in success criteria.
const (
	MetricWinRate      = "win_rate"
	MetricAvgReturn    = "avg_return"
	MetricTotalReturn  = "total_return"
	MetricSharpeRatio  = "sharpe_ratio"
	MetricProfitFactor = "profit_factor"
	MetricMaxDrawdown  = "max_drawdown"
)

// MetricNames returns every supported success metric.
func MetricNames() []string {
	return []string{
		MetricWinRate,
		MetricAvgReturn,
		MetricTotalReturn,
		MetricSharpeRatio,
		MetricProfitFactor,
		MetricMaxDrawdown,
	}
}

// ValidateCriteria reports the first unknown metric in criteria.
func ValidateCriteria(criteria map[string]float64) error {
	names := make([]string, 0, len(criteria))
	for name := range criteria {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !isMetric(name) {
			return fmt.Errorf("%w: %q", types.ErrUnknownMetric, name)
		}
	}
	return nil
}

func isMetric(name string) bool {
	for _, m := range MetricNames() {
		if m == name {
			return true
		}
	}
	return false
}

// TradeRecord is the outcome of one simulated option trade.
type TradeRecord struct {
	Signal        types.OptionKind
	Strike        decimal.Decimal
	Contracts     int
	EntryPrice    decimal.Decimal
	ExitPrice     decimal.Decimal
	PnL           decimal.Decimal // (exit - entry) * 100 * contracts
	ReturnPct     decimal.Decimal // (exit - entry) / entry, as a ratio
	ConditionName string
	Condition     float64
	Confidence    float64
}

// Win reports whether the trade made money. A flat trade is a loss.
func (r TradeRecord) Win() bool {
	return r.PnL.IsPositive()
}

// Test is one hypothesis: a strategy, its parameters, the thresholds it
// must meet, and once run, its trades and metrics.
type Test struct {
	Name            string
	Description     string
	Strategy        string
	Parameters      strategy.Parameters
	SuccessCriteria map[string]float64

	State     State
	Timestamp time.Time // set when the run starts
	Trades    []TradeRecord
	Metrics   Metrics
}

// NewTest creates a configured test from a definition.
func NewTest(def strategy.Definition) *Test {
	criteria := make(map[string]float64, len(def.SuccessCriteria))
	for k, v := range def.SuccessCriteria {
		criteria[k] = v
	}
	return &Test{
		Name:            def.Name,
		Description:     def.Description,
		Strategy:        def.Strategy,
		Parameters:      def.Parameters.Clone(),
		SuccessCriteria: criteria,
		State:           StateConfigured,
		Trades:          make([]TradeRecord, 0),
	}
}

// start moves a configured test to RUNNING.
func (t *Test) start(at time.Time) error {
	if t.State != StateConfigured {
		return fmt.Errorf("%w: %s is %s", types.ErrTestNotRunnable, t.Name, t.State)
	}
	t.State = StateRunning
	t.Timestamp = at
	return nil
}

// record appends a trade and updates the running counters.
func (t *Test) record(trade TradeRecord) {
	t.Trades = append(t.Trades, trade)
	t.Metrics.TotalTrades++
	if trade.Win() {
		t.Metrics.WinningTrades++
	} else {
		t.Metrics.LosingTrades++
	}
	t.Metrics.TotalReturn = t.Metrics.TotalReturn.Add(trade.ReturnPct)
}

// Finalize computes aggregate metrics and freezes the test.
func (t *Test) Finalize() {
	t.Metrics = Calculate(t.Trades)
	t.State = StateFinalized
}

// Metric returns the named metric.
func (t *Test) Metric(name string) (decimal.Decimal, error) {
	m := t.Metrics
	switch name {
	case MetricWinRate:
		return m.WinRate, nil
	case MetricAvgReturn:
		return m.AvgReturn, nil
	case MetricTotalReturn:
		return m.TotalReturn, nil
	case MetricSharpeRatio:
		return m.SharpeRatio, nil
	case MetricProfitFactor:
		return m.ProfitFactor, nil
	case MetricMaxDrawdown:
		return m.MaxDrawdown, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", types.ErrUnknownMetric, name)
	}
}

// CriterionResult is one success threshold checked against a metric.
type CriterionResult struct {
	Metric string
	Actual decimal.Decimal
	Target decimal.Decimal
	Passed bool
	Known  bool
}

// Criteria evaluates every success criterion, sorted by metric name.
// Unknown metrics never pass.
func (t *Test) Criteria() []CriterionResult {
	names := make([]string, 0, len(t.SuccessCriteria))
	for name := range t.SuccessCriteria {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CriterionResult, 0, len(names))
	for _, name := range names {
		target := decimal.NewFromFloat(t.SuccessCriteria[name])
		actual, err := t.Metric(name)
		results = append(results, CriterionResult{
			Metric: name,
			Actual: actual,
			Target: target,
			Passed: err == nil && actual.GreaterThanOrEqual(target),
			Known:  err == nil,
		})
	}
	return results
}

// IsSuccessful reports whether every criterion is met. A test with no
// trades is never successful.
func (t *Test) IsSuccessful() bool {
	if t.Metrics.TotalTrades == 0 {
		return false
	}
	for _, c := range t.Criteria() {
		if !c.Passed {
			return false
		}
	}
	return true
}
