// Package main is the entry point for the options hypothesis lab.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/alerting"
	"github.com/tathienbao/options-lab/internal/config"
	"github.com/tathienbao/options-lab/internal/execution"
	"github.com/tathienbao/options-lab/internal/hypothesis"
	"github.com/tathienbao/options-lab/internal/market"
	"github.com/tathienbao/options-lab/internal/metrics"
	"github.com/tathienbao/options-lab/internal/reporting"
	"github.com/tathienbao/options-lab/internal/types"
	"github.com/tathienbao/options-lab/internal/ui"
)

// Version information (set by build flags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Parse command
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		cmdRun(os.Args[2:])
	case "simulate":
		cmdSimulate(os.Args[2:])
	case "report":
		cmdReport(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Options Lab - Simulated Options Hypothesis Testing

Usage:
  optlab <command> [options]

Commands:
  run        Run the configured hypothesis suite
  simulate   Run a scripted session against the simulated broker
  report     Export stored hypothesis results as CSV
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  optlab run
  optlab run --config config.yaml --trades 200 --csv results.csv
  optlab simulate --seed 7
  optlab report --sqlite results.db --strategy momentum
  optlab report --from-csv results.csv --limit 5
  optlab validate --config config.yaml

Use "optlab <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("optlab version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

// newLogger builds the process logger. Logs go to stderr so they do not
// interleave with progress output.
// flagPassed reports whether name was set on the command line, so an
// explicit zero still overrides the config.
func flagPassed(fs *flag.FlagSet, name string) bool {
	passed := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

func newLogger(cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Initial cash: $%.2f\n", cfg.Simulation.InitialCash)
	fmt.Printf("  Underlying: %s\n", cfg.Simulation.Underlying)
	fmt.Printf("  Seed: %d\n", cfg.Simulation.Seed)
	fmt.Printf("  Hypotheses: %d\n", len(cfg.Hypotheses))
	for _, h := range cfg.Hypotheses {
		fmt.Printf("    - %s (%s, %d trades, %d criteria)\n", h.Name, h.Strategy, h.NumTrades, len(h.SuccessCriteria))
	}
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (default: built-in hypotheses)")
	numTrades := fs.Int("trades", 0, "Override the trade count of every hypothesis")
	seed := fs.Uint64("seed", 0, "Override the price walk seed")
	csvPath := fs.String("csv", "", "Also write a CSV summary to this file")
	alertLog := fs.String("alert-log", "", "Append alerts and the suite summary to this file")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if flagPassed(fs, "seed") {
		cfg.Simulation.Seed = *seed
	}

	logger := newLogger(cfg, *verbose)
	slog.SetDefault(logger)

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.SetBuildInfo(Version, GitCommit, BuildTime)
	recorder := metrics.NewRecorder()

	var server *metrics.Server
	if cfg.Metrics.Enabled {
		server = metrics.NewServer(cfg.MetricsServerConfig(), logger)
		if err := server.Start(); err != nil {
			slog.Error("failed to start metrics server", "err", err)
			os.Exit(1)
		}
	}

	store, err := openResultStore(cfg, logger, recorder)
	if err != nil {
		slog.Error("failed to open result store", "err", err)
		os.Exit(1)
	}
	if server != nil && store != nil {
		server.RegisterHealthCheck("results", store.healthCheck)
	}

	alerter, writer, closeAlerts, err := newAlerter(cfg, logger, *alertLog)
	if err != nil {
		slog.Error("failed to open alert log", "err", err)
		os.Exit(1)
	}

	defs := cfg.Definitions()
	if *numTrades > 0 {
		for i := range defs {
			defs[i].NumTrades = *numTrades
		}
	}

	term := ui.NewTerminal(os.Stdout)
	harness := hypothesis.NewHarness(cfg.HarnessConfig(), logger)
	harness.SetOrderObserver(execution.ObserverFunc(func(order types.Order) {
		recorder.ObserveOrder(order)
		if alerter != nil && order.Status == types.OrderStatusRejected {
			_ = alerting.Notify(ctx, alerter, alerting.EventOrderRejected, "order rejected",
				"symbol", order.Symbol, "side", order.Side.String(), "reason", order.RejectReason)
		}
	}))
	harness.SetProgressCallback(term.Progress)

	var suite *hypothesis.Suite
	if store != nil {
		suite = hypothesis.NewSuite(harness, store, alerter, logger)
	} else {
		suite = hypothesis.NewSuite(harness, nil, alerter, logger)
	}

	timer := metrics.NewTimer()
	suite.SetCompletionCallback(func(index, total int, test *hypothesis.Test) {
		recorder.RecordTest(test, timer.Elapsed())
		timer = metrics.NewTimer()
		term.PrintTest(test)
	})

	slog.Info("optlab starting",
		"version", Version,
		"hypotheses", len(defs),
		"seed", cfg.Simulation.Seed,
		"underlying", cfg.Simulation.Underlying,
	)

	started := time.Now()
	term.Start()
	tests, runErr := suite.RunAll(ctx, defs)
	term.Stop()

	if runErr != nil {
		recorder.RecordError("suite")
		if len(tests) < len(defs) {
			recorder.RecordTestFailed(defs[len(tests)].Strategy)
		}
		slog.Error("hypothesis suite stopped", "err", runErr, "completed", len(tests))
	}

	summary := hypothesis.Summary(started, time.Since(started), tests)
	term.PrintSummary(summary)
	if writer != nil {
		if err := writer.SendSuiteSummary(ctx, summary); err != nil {
			slog.Warn("failed to write suite summary", "err", err)
		}
	}

	if *csvPath != "" {
		if err := writeCSV(*csvPath, tests); err != nil {
			slog.Error("failed to write csv", "err", err)
			runErr = errors.Join(runErr, err)
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx, server, store, closeAlerts); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	if runErr != nil {
		os.Exit(1)
	}
}

// newAlerter builds the alert chain. The writer alerter is returned
// separately so the caller can send it the suite summary.
func newAlerter(cfg *config.Config, logger *slog.Logger, logPath string) (alerting.Alerter, *alerting.WriterAlerter, func() error, error) {
	noop := func() error { return nil }
	if !cfg.Alerting.Enabled {
		return nil, nil, noop, nil
	}

	multi := alerting.NewMultiAlerter(logger, alerting.NewConsoleAlerter(logger))

	var writer *alerting.WriterAlerter
	closer := noop
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, noop, err
		}
		writer = alerting.NewWriterAlerter(f)
		multi.AddAlerter(writer)
		closer = f.Close
	}

	return alerting.NewFilteredAlerter(multi, cfg.IsAlertEventEnabled), writer, closer, nil
}

func writeCSV(path string, tests []*hypothesis.Test) error {
	rows := make([]reporting.Row, len(tests))
	for i, t := range tests {
		rows[i] = reporting.RowFromTest(t)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := reporting.RenderCSV(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func shutdown(ctx context.Context, server *metrics.Server, store *resultStore, closeAlerts func() error) error {
	// Shutdown steps with timeout check
	steps := []struct {
		name string
		fn   func() error
	}{
		{"close result stores", func() error {
			if store == nil {
				return nil
			}
			return store.Close()
		}},
		{"close alert log", closeAlerts},
		{"stop metrics server", func() error {
			if server == nil {
				return nil
			}
			return server.Shutdown(ctx)
		}},
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown timeout during: %s", step.name)
		default:
			slog.Debug("shutdown step", "step", step.name)
			if err := step.fn(); err != nil {
				slog.Warn("shutdown step failed", "step", step.name, "err", err)
			}
		}
	}
	return nil
}

// cmdSimulate walks through a scripted paper-trading session: stock buys
// and sells, a price walk, a resting limit order and an option purchase.
func cmdSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (default: built-in settings)")
	seed := fs.Uint64("seed", 0, "Override the price walk seed")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if flagPassed(fs, "seed") {
		cfg.Simulation.Seed = *seed
	}
	logger := newLogger(cfg, *verbose)

	hc := cfg.HarnessConfig()
	quotes := hc.Quotes
	if quotes == nil {
		quotes = market.DefaultQuotes()
	}
	oracle := market.NewOracleWithQuotes(hc.Seed, quotes)
	sim := execution.NewSimulatedExecutor(execution.SimulatedConfig{InitialCash: hc.InitialCash}, oracle, logger)
	sim.SetObserver(metrics.NewRecorder())

	if err := runSession(context.Background(), os.Stdout, sim, oracle, cfg.Simulation.Underlying); err != nil {
		slog.Error("simulation failed", "err", err)
		os.Exit(1)
	}
}

func runSession(ctx context.Context, w io.Writer, sim *execution.SimulatedExecutor, oracle *market.Oracle, symbol string) error {
	printAccount(w, "Initial account", sim.Summary())

	steps := []struct {
		title string
		req   types.OrderRequest
	}{
		{fmt.Sprintf("BUY 10 %s", symbol), types.MarketStock(symbol, 10, types.SideBuy)},
		{fmt.Sprintf("BUY 5 more %s", symbol), types.MarketStock(symbol, 5, types.SideBuy)},
		{fmt.Sprintf("SELL 8 %s", symbol), types.MarketStock(symbol, 8, types.SideSell)},
	}

	for i, step := range steps {
		order, err := sim.PlaceOrder(ctx, step.req)
		if err != nil {
			return fmt.Errorf("%s: %w", step.title, err)
		}
		printOrder(w, step.title, order)

		if i == 0 {
			// Let the market move before adding to the position.
			for range 5 {
				oracle.Price(symbol)
			}
			sim.MarkToMarket()
			printPositions(w, sim)
		}
	}

	quote := oracle.Price("AAPL")
	limit := quote.Sub(decimal.NewFromInt(5))
	order, err := sim.PlaceOrder(ctx, types.LimitStock("AAPL", 5, types.SideBuy, limit))
	if err != nil {
		return fmt.Errorf("limit order: %w", err)
	}
	printOrder(w, fmt.Sprintf("LIMIT BUY 5 AAPL @ %s (quote %s)", limit.StringFixed(2), quote.StringFixed(2)), order)

	spot := oracle.Price(symbol)
	strike := spot.Round(0)
	expiry := time.Now().AddDate(0, 0, 30)
	order, err = sim.PlaceOrder(ctx, types.MarketOption(symbol, strike, types.OptionCall, expiry, 2, types.SideBuy))
	if err != nil {
		return fmt.Errorf("option order: %w", err)
	}
	printOrder(w, fmt.Sprintf("BUY 2 %s %s CALL %s", symbol, strike.String(), expiry.Format("2006-01-02")), order)

	sim.MarkToMarket()
	printPositions(w, sim)
	printAccount(w, "Final account", sim.Summary())
	return nil
}

func printOrder(w io.Writer, title string, o *types.Order) {
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintf(w, "  Status: %s\n", o.Status)
	switch o.Status {
	case types.OrderStatusFilled:
		fmt.Fprintf(w, "  Filled at: $%s\n", o.FilledPrice.StringFixed(2))
	case types.OrderStatusRejected:
		fmt.Fprintf(w, "  Reason: %s\n", o.RejectReason)
	}
}

func printPositions(w io.Writer, sim *execution.SimulatedExecutor) {
	fmt.Fprintln(w, "\nPositions:")
	positions := sim.Ledger().Positions()
	for _, key := range sim.Ledger().Keys() {
		p := positions[key]
		fmt.Fprintf(w, "  %-28s qty %4d  entry $%9s  mark $%9s  P&L $%9s (%s%%)\n",
			key, p.Quantity, p.EntryPrice.StringFixed(2), p.CurrentPrice.StringFixed(2),
			p.UnrealizedPL().StringFixed(2), p.UnrealizedPLPercent().StringFixed(2))
	}
}

func printAccount(w io.Writer, title string, s types.AccountSummary) {
	fmt.Fprintf(w, "\n=== %s ===\n", title)
	fmt.Fprintf(w, "Cash:            $%s\n", s.Cash.StringFixed(2))
	fmt.Fprintf(w, "Positions value: $%s\n", s.PositionsValue.StringFixed(2))
	fmt.Fprintf(w, "Total value:     $%s\n", s.TotalValue.StringFixed(2))
	fmt.Fprintf(w, "P&L:             $%s (%s%%)\n", s.TotalPL.StringFixed(2), s.TotalPLPercent.StringFixed(2))
	fmt.Fprintf(w, "Positions:       %d\n", s.NumPositions)
	fmt.Fprintf(w, "Filled orders:   %d\n", s.NumOrders)
}
