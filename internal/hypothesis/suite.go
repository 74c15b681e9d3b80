package hypothesis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tathienbao/options-lab/internal/alerting"
	"github.com/tathienbao/options-lab/internal/strategy"
)

// ResultStore persists finished test artifacts.
type ResultStore interface {
	SaveResult(ctx context.Context, artifact Artifact) error
}

// CompletionCallback is called after each test in a suite finishes.
type CompletionCallback func(index, total int, test *Test)

// Suite runs a list of hypotheses in order and persists each result.
type Suite struct {
	harness    *Harness
	store      ResultStore
	alerter    alerting.Alerter
	logger     *slog.Logger
	onComplete CompletionCallback
}

// NewSuite creates a suite. store and alerter may be nil.
func NewSuite(harness *Harness, store ResultStore, alerter alerting.Alerter, logger *slog.Logger) *Suite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Suite{
		harness: harness,
		store:   store,
		alerter: alerter,
		logger:  logger,
	}
}

// SetCompletionCallback sets a callback for finished tests.
func (s *Suite) SetCompletionCallback(cb CompletionCallback) {
	s.onComplete = cb
}

// RunAll runs every definition in order. It stops at the first test that
// cannot run or cannot be stored and returns the tests finished so far.
func (s *Suite) RunAll(ctx context.Context, defs []strategy.Definition) ([]*Test, error) {
	started := time.Now()
	results := make([]*Test, 0, len(defs))

	s.notify(ctx, alerting.EventSuiteStarted, "hypothesis suite started", "hypotheses", len(defs))

	for i, def := range defs {
		test := NewTest(def)

		if err := s.harness.Run(ctx, test, def.NumTrades); err != nil {
			s.notify(ctx, alerting.EventHypothesisFailed, "hypothesis test failed",
				"name", def.Name, "error", err.Error())
			return results, fmt.Errorf("run %s: %w", def.Name, err)
		}

		if s.store != nil {
			artifact := NewArtifact(test)
			if err := s.store.SaveResult(ctx, artifact); err != nil {
				s.notify(ctx, alerting.EventResultStoreFailed, "could not save hypothesis result",
					"name", def.Name, "error", err.Error())
				return results, fmt.Errorf("save %s: %w", def.Name, err)
			}
			s.logger.Info("test results saved", "file", artifact.FileName())
		}

		results = append(results, test)
		s.notifyOutcome(ctx, test)

		if s.onComplete != nil {
			s.onComplete(i, len(defs), test)
		}
	}

	validated := 0
	for _, t := range results {
		if t.IsSuccessful() {
			validated++
		}
	}
	s.notify(ctx, alerting.EventSuiteCompleted, "hypothesis suite completed",
		"validated", validated,
		"total", len(results),
		"duration", time.Since(started).Round(time.Millisecond).String(),
	)

	return results, nil
}

// Summary converts finished tests into an alerting summary.
func Summary(startedAt time.Time, duration time.Duration, tests []*Test) alerting.SuiteSummary {
	outcomes := make([]alerting.HypothesisOutcome, len(tests))
	for i, t := range tests {
		outcomes[i] = alerting.HypothesisOutcome{
			Name:       t.Name,
			Strategy:   t.Strategy,
			Trades:     t.Metrics.TotalTrades,
			WinRate:    t.Metrics.WinRate,
			AvgReturn:  t.Metrics.AvgReturn,
			Successful: t.IsSuccessful(),
		}
	}
	return alerting.NewSuiteSummary(startedAt, duration, outcomes)
}

func (s *Suite) notifyOutcome(ctx context.Context, t *Test) {
	fields := []any{
		"name", t.Name,
		"trades", t.Metrics.TotalTrades,
		"win_rate", t.Metrics.WinRate.StringFixed(4),
		"avg_return", t.Metrics.AvgReturn.StringFixed(4),
	}
	if t.IsSuccessful() {
		s.notify(ctx, alerting.EventHypothesisValidated, "hypothesis validated", fields...)
		return
	}
	s.notify(ctx, alerting.EventHypothesisRejected, "hypothesis rejected", fields...)
}

// notify logs alerter failures instead of failing the run.
func (s *Suite) notify(ctx context.Context, event alerting.AlertEvent, message string, fields ...any) {
	if s.alerter == nil {
		return
	}
	if err := alerting.Notify(ctx, s.alerter, event, message, fields...); err != nil {
		s.logger.Warn("alert failed", "event", string(event), "error", err)
	}
}
