package alerting

import (
	"time"

	"github.com/shopspring/decimal"
)

// HypothesisOutcome is one line of a suite summary.
type HypothesisOutcome struct {
	Name       string
	Strategy   string
	Trades     int
	WinRate    decimal.Decimal // ratio
	AvgReturn  decimal.Decimal // ratio
	Successful bool
}

// SuiteSummary contains the statistics of a hypothesis suite run.
type SuiteSummary struct {
	StartedAt     time.Time
	Duration      time.Duration
	Total         int
	Validated     int
	TotalTrades   int
	ValidatedPct  decimal.Decimal // percent of hypotheses validated
	MeanWinRate   decimal.Decimal // percent, trade-weighted
	Outcomes      []HypothesisOutcome
	ValidatedList []string
}

// NewSuiteSummary creates a suite summary from per-hypothesis outcomes.
func NewSuiteSummary(startedAt time.Time, duration time.Duration, outcomes []HypothesisOutcome) SuiteSummary {
	s := SuiteSummary{
		StartedAt: startedAt,
		Duration:  duration,
		Total:     len(outcomes),
		Outcomes:  outcomes,
	}

	wins := decimal.Zero
	for _, o := range outcomes {
		s.TotalTrades += o.Trades
		wins = wins.Add(o.WinRate.Mul(decimal.NewFromInt(int64(o.Trades))))
		if o.Successful {
			s.Validated++
			s.ValidatedList = append(s.ValidatedList, o.Name)
		}
	}

	if s.Total > 0 {
		s.ValidatedPct = decimal.NewFromInt(int64(s.Validated)).
			Div(decimal.NewFromInt(int64(s.Total))).
			Mul(decimal.NewFromInt(100))
	}
	if s.TotalTrades > 0 {
		s.MeanWinRate = wins.
			Div(decimal.NewFromInt(int64(s.TotalTrades))).
			Mul(decimal.NewFromInt(100))
	}

	return s
}
