package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/tathienbao/options-lab/internal/config"
	"github.com/tathienbao/options-lab/internal/hypothesis"
	"github.com/tathienbao/options-lab/internal/metrics"
	"github.com/tathienbao/options-lab/internal/persistence"
	"github.com/tathienbao/options-lab/internal/reporting"
)

// resultStore is the JSON directory plus an optional throttled SQLite
// copy, with every write counted.
type resultStore struct {
	*persistence.Fanout

	mu      sync.Mutex
	lastErr error
}

// countedStore records each write against its store label.
type countedStore struct {
	persistence.Store
	name     string
	recorder *metrics.Recorder
}

func (s countedStore) SaveResult(ctx context.Context, a hypothesis.Artifact) error {
	if err := s.Store.SaveResult(ctx, a); err != nil {
		s.recorder.RecordStoreError(s.name)
		return err
	}
	s.recorder.RecordResultSaved(s.name)
	return nil
}

// openResultStore returns nil when results are disabled. The first
// configured store is the primary; a SQLite store behind a JSON directory
// is a secondary.
func openResultStore(cfg *config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*resultStore, error) {
	if !cfg.Results.Enabled {
		return nil, nil
	}

	var stores []persistence.Store
	closeAll := func() {
		for _, s := range stores {
			_ = s.Close()
		}
	}

	if cfg.Results.Dir != "" {
		files, err := persistence.NewFileStore(cfg.Results.Dir)
		if err != nil {
			return nil, err
		}
		stores = append(stores, countedStore{Store: files, name: "file", recorder: recorder})
	}
	if cfg.Results.SQLitePath != "" {
		db, err := persistence.NewSQLiteStore(cfg.Results.SQLitePath)
		if err != nil {
			closeAll()
			return nil, err
		}
		throttled := persistence.NewThrottledStore(db, cfg.Results.WritesPerSecond)
		stores = append(stores, countedStore{Store: throttled, name: "sqlite", recorder: recorder})
	}
	if len(stores) == 0 {
		return nil, nil
	}

	rs := &resultStore{Fanout: persistence.NewFanout(logger, stores[0], stores[1:]...)}
	rs.OnSecondaryFailure(func(_ int, err error) {
		rs.mu.Lock()
		rs.lastErr = err
		rs.mu.Unlock()
	})
	return rs, nil
}

// healthCheck reports the last secondary store failure, if any.
func (s *resultStore) healthCheck() metrics.Check {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		return metrics.Check{Status: "degraded", Message: s.lastErr.Error()}
	}
	return metrics.Check{Status: "healthy"}
}

func cmdReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dir := fs.String("dir", "hypothesis_results", "Directory of JSON results")
	sqlitePath := fs.String("sqlite", "", "Read from this SQLite database instead of --dir")
	fromCSV := fs.String("from-csv", "", "Read a CSV written by 'run --csv' or 'report' instead of --dir")
	strategyName := fs.String("strategy", "", "Only include this strategy")
	limit := fs.Int("limit", 0, "Maximum number of results (0 = all)")
	out := fs.String("out", "", "Output file (default: stdout)")
	fs.Parse(args)

	var (
		rows []reporting.Row
		err  error
	)
	switch {
	case *fromCSV != "":
		rows, err = csvRows(*fromCSV, *strategyName, *limit)
	case *sqlitePath != "":
		rows, err = sqliteRows(*sqlitePath, *strategyName, *limit)
	default:
		rows, err = fileRows(*dir, *strategyName, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	if err := reporting.RenderCSV(w, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d results to %s\n", len(rows), *out)
	}
}

func fileRows(dir, strategy string, limit int) ([]reporting.Row, error) {
	files, err := persistence.NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	defer files.Close()
	return storedRows(files, strategy, limit)
}

func sqliteRows(path, strategy string, limit int) ([]reporting.Row, error) {
	db, err := persistence.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return storedRows(db, strategy, limit)
}

func storedRows(reader persistence.Reader, strategy string, limit int) ([]reporting.Row, error) {
	results, err := reader.ListResults(context.Background(), strategy, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]reporting.Row, len(results))
	for i, r := range results {
		rows[i] = reporting.RowFromArtifact(r.Artifact)
	}
	return rows, nil
}

// csvRows reads an exported CSV and orders it like the stores do: newest
// first, filtered by strategy, at most limit rows.
func csvRows(path, strategy string, limit int) ([]reporting.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	parsed, err := reporting.ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	rows := parsed[:0]
	for _, r := range parsed {
		if strategy == "" || r.Strategy == strategy {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp > rows[j].Timestamp
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
