package metrics

import (
	"strings"
	"time"

	"github.com/tathienbao/options-lab/internal/hypothesis"
	"github.com/tathienbao/options-lab/internal/types"
)

// Recorder translates simulator and harness events into metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveOrder implements execution.OrderObserver.
func (r *Recorder) ObserveOrder(order types.Order) {
	instrument := "stock"
	if order.IsOption {
		instrument = "option"
	}
	status := strings.ToLower(order.Status.String())
	OrdersTotal.WithLabelValues(instrument, strings.ToLower(order.Side.String()), status).Inc()

	switch order.Status {
	case types.OrderStatusRejected:
		OrderRejections.WithLabelValues(rejectionReason(order.RejectReason)).Inc()
	case types.OrderStatusFilled:
		FillNotional.Observe(order.FilledPrice.InexactFloat64() * float64(order.Quantity))
	}
}

// RecordTest records a finished test and its trades.
func (r *Recorder) RecordTest(t *hypothesis.Test, duration time.Duration) {
	for _, tr := range t.Trades {
		outcome := "loss"
		if tr.Win() {
			outcome = "win"
		}
		TradesTotal.WithLabelValues(t.Strategy, outcome).Inc()
		TradePnL.WithLabelValues(t.Strategy).Observe(tr.PnL.InexactFloat64())
	}

	result := "rejected"
	if t.IsSuccessful() {
		result = "validated"
	}
	TestsTotal.WithLabelValues(t.Strategy, result).Inc()
	WinRate.WithLabelValues(t.Strategy).Set(t.Metrics.WinRate.InexactFloat64())
	SharpeRatio.WithLabelValues(t.Strategy).Set(t.Metrics.SharpeRatio.InexactFloat64())
	TestDuration.WithLabelValues(t.Strategy).Observe(duration.Seconds())
}

// RecordTestFailed records a test that could not run.
func (r *Recorder) RecordTestFailed(strategy string) {
	TestsTotal.WithLabelValues(strategy, "failed").Inc()
}

// RecordResultSaved records a written artifact.
func (r *Recorder) RecordResultSaved(store string) {
	ResultsSaved.WithLabelValues(store).Inc()
}

// RecordStoreError records a failed artifact write.
func (r *Recorder) RecordStoreError(store string) {
	ResultStoreErrors.WithLabelValues(store).Inc()
}

// RecordError records an error.
func (r *Recorder) RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// rejectionReason keeps label cardinality bounded.
func rejectionReason(reason string) string {
	switch {
	case strings.Contains(reason, "insufficient funds"):
		return "insufficient_funds"
	case strings.Contains(reason, "no position"):
		return "no_position"
	case strings.Contains(reason, "insufficient position"):
		return "insufficient_position"
	default:
		return "other"
	}
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
