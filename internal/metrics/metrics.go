// Package metrics exposes Prometheus metrics for simulator orders and
// hypothesis runs, plus a small HTTP server for scraping and health checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "optlab"

var (
	// Order metrics
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "simulator",
		Name:      "orders_total",
		Help:      "Orders resolved by the simulator",
	}, []string{"instrument", "side", "status"})

	OrderRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "simulator",
		Name:      "order_rejections_total",
		Help:      "Rejected orders by reason",
	}, []string{"reason"})

	FillNotional = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "simulator",
		Name:      "fill_notional",
		Help:      "Filled price times quantity",
		Buckets:   []float64{1, 10, 100, 1000, 10000, 100000},
	})

	// Hypothesis metrics
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hypothesis",
		Name:      "trades_total",
		Help:      "Simulated option trades by outcome",
	}, []string{"strategy", "outcome"})

	TradePnL = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "hypothesis",
		Name:      "trade_pnl",
		Help:      "Per-trade P&L in dollars",
		Buckets:   []float64{-1000, -500, -100, -50, 0, 50, 100, 500, 1000},
	}, []string{"strategy"})

	TestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hypothesis",
		Name:      "tests_total",
		Help:      "Finished hypothesis tests by result",
	}, []string{"strategy", "result"})

	WinRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "hypothesis",
		Name:      "win_rate",
		Help:      "Win rate of the last finished test",
	}, []string{"strategy"})

	SharpeRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "hypothesis",
		Name:      "sharpe_ratio",
		Help:      "Sharpe ratio of the last finished test",
	}, []string{"strategy"})

	TestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "hypothesis",
		Name:      "test_duration_seconds",
		Help:      "Wall time of one hypothesis test",
		Buckets:   prometheus.DefBuckets,
	}, []string{"strategy"})

	// Storage metrics
	ResultsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "results",
		Name:      "saved_total",
		Help:      "Result artifacts written",
	}, []string{"store"})

	ResultStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "results",
		Name:      "store_errors_total",
		Help:      "Failed result writes by store",
	}, []string{"store"})

	// System metrics
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Errors by type",
	}, []string{"type"})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version", "commit", "build_date"})
)

// SetBuildInfo publishes the build labels.
func SetBuildInfo(version, commit, buildDate string) {
	BuildInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
