package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/config"
	"github.com/tathienbao/options-lab/internal/execution"
	"github.com/tathienbao/options-lab/internal/hypothesis"
	"github.com/tathienbao/options-lab/internal/market"
	"github.com/tathienbao/options-lab/internal/metrics"
	"github.com/tathienbao/options-lab/internal/persistence"
	"github.com/tathienbao/options-lab/internal/reporting"
	"github.com/tathienbao/options-lab/internal/strategy"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if len(cfg.Hypotheses) != 3 {
		t.Errorf("hypotheses = %d, want 3", len(cfg.Hypotheses))
	}
}

func TestOpenResultStore_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Results.Enabled = false

	store, err := openResultStore(cfg, nil, metrics.NewRecorder())
	if err != nil {
		t.Fatalf("openResultStore() error = %v", err)
	}
	if store != nil {
		t.Error("expected no store when results are disabled")
	}
}

func TestOpenResultStore_FileAndSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Results.Dir = filepath.Join(dir, "results")
	cfg.Results.SQLitePath = filepath.Join(dir, "results.db")

	store, err := openResultStore(cfg, nil, metrics.NewRecorder())
	if err != nil {
		t.Fatalf("openResultStore() error = %v", err)
	}

	artifact := hypothesis.Artifact{
		TestInfo: hypothesis.TestInfo{
			Name:      "Momentum Options Strategy",
			Strategy:  strategy.MomentumName,
			Timestamp: "20241231_093000",
		},
		Trades: []hypothesis.ArtifactTrade{},
	}
	if err := store.SaveResult(context.Background(), artifact); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if got := store.healthCheck().Status; got != "healthy" {
		t.Errorf("health = %s, want healthy", got)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.Results.Dir, "momentum_20241231_093000_momentum-options-strategy.json")); err != nil {
		t.Errorf("json result missing: %v", err)
	}

	db, err := persistence.NewSQLiteStore(cfg.Results.SQLitePath)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer db.Close()
	n, err := db.CountResults(context.Background())
	if err != nil {
		t.Fatalf("CountResults() error = %v", err)
	}
	if n != 1 {
		t.Errorf("sqlite results = %d, want 1", n)
	}
}

func TestRunSession(t *testing.T) {
	oracle := market.NewOracle(7)
	sim := execution.NewSimulatedExecutor(execution.SimulatedConfig{
		InitialCash: decimal.NewFromInt(100000),
	}, oracle, nil)

	var buf bytes.Buffer
	if err := runSession(context.Background(), &buf, sim, oracle, "SPY"); err != nil {
		t.Fatalf("runSession() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"=== Initial account ===",
		"BUY 10 SPY",
		"SELL 8 SPY",
		"LIMIT BUY 5 AAPL",
		"CALL",
		"=== Final account ===",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	// 10 + 5 - 8 shares remain.
	pos, ok := sim.Ledger().Position("SPY")
	if !ok || pos.Quantity != 7 {
		t.Errorf("SPY position = %+v, want 7 shares", pos)
	}
}

func TestWriteCSV(t *testing.T) {
	test := hypothesis.NewTest(strategy.Definitions()[0])
	test.Finalize()

	path := filepath.Join(t.TempDir(), "results.csv")
	if err := writeCSV(path, []*hypothesis.Test{test}); err != nil {
		t.Fatalf("writeCSV() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := reporting.ParseCSV(f)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Name != test.Name {
		t.Errorf("rows = %+v", rows)
	}
}

func TestFlagPassed(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     bool
		wantSeed uint64
	}{
		{"not passed", nil, false, 42},
		{"explicit zero", []string{"--seed", "0"}, true, 0},
		{"non-zero", []string{"--seed=7"}, true, 7},
		{"other flag only", []string{"--verbose"}, false, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("run", flag.ContinueOnError)
			seed := fs.Uint64("seed", 0, "")
			fs.Bool("verbose", false, "")
			if err := fs.Parse(tt.args); err != nil {
				t.Fatal(err)
			}

			cfg := config.Default()
			cfg.Simulation.Seed = 42
			if flagPassed(fs, "seed") {
				cfg.Simulation.Seed = *seed
			}

			if got := flagPassed(fs, "seed"); got != tt.want {
				t.Errorf("flagPassed() = %v, want %v", got, tt.want)
			}
			if cfg.Simulation.Seed != tt.wantSeed {
				t.Errorf("seed = %d, want %d", cfg.Simulation.Seed, tt.wantSeed)
			}
		})
	}
}

func TestCSVRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	err = reporting.RenderCSV(f, []reporting.Row{
		{Name: "Momentum Options Strategy", Strategy: "momentum", Timestamp: "20241231_093000", TotalTrades: 20},
		{Name: "Volatility Options Strategy", Strategy: "volatility", Timestamp: "20241231_093001", TotalTrades: 12},
		{Name: "Momentum tight", Strategy: "momentum", Timestamp: "20250102_100000", TotalTrades: 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	tests := []struct {
		name     string
		strategy string
		limit    int
		want     []string
	}{
		{"all newest first", "", 0, []string{"Momentum tight", "Volatility Options Strategy", "Momentum Options Strategy"}},
		{"by strategy", "momentum", 0, []string{"Momentum tight", "Momentum Options Strategy"}},
		{"limited", "", 1, []string{"Momentum tight"}},
		{"no match", "trend_following", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := csvRows(path, tt.strategy, tt.limit)
			if err != nil {
				t.Fatalf("csvRows() error = %v", err)
			}
			var got []string
			for _, r := range rows {
				got = append(got, r.Name)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("rows = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := csvRows(filepath.Join(t.TempDir(), "missing.csv"), "", 0); err == nil {
		t.Error("expected error for a missing file")
	}
}
