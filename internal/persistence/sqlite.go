package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/hypothesis"
	"github.com/tathienbao/options-lab/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps results and their sampled trades in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewSQLiteStore opens the database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS hypothesis_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			strategy TEXT NOT NULL,
			parameters TEXT NOT NULL DEFAULT '{}',
			success_criteria TEXT NOT NULL DEFAULT '{}',
			run_timestamp TEXT NOT NULL,
			total_trades INTEGER NOT NULL,
			winning_trades INTEGER NOT NULL,
			losing_trades INTEGER NOT NULL,
			win_rate TEXT NOT NULL,
			avg_return TEXT NOT NULL,
			total_return TEXT NOT NULL,
			profit_factor TEXT NOT NULL,
			max_drawdown TEXT NOT NULL,
			sharpe_ratio TEXT NOT NULL,
			is_successful INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_strategy ON hypothesis_results(strategy)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run_timestamp ON hypothesis_results(run_timestamp)`,

		`CREATE TABLE IF NOT EXISTS hypothesis_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			result_id INTEGER NOT NULL REFERENCES hypothesis_results(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			signal TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			exit_price TEXT NOT NULL,
			pnl TEXT NOT NULL,
			return_pct TEXT NOT NULL,
			condition_name TEXT NOT NULL DEFAULT '',
			condition_value TEXT NOT NULL DEFAULT '0',
			confidence TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_result_id ON hypothesis_trades(result_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// SaveResult inserts the artifact and its trades in one transaction.
func (s *SQLiteStore) SaveResult(ctx context.Context, a hypothesis.Artifact) error {
	if s.closed.Load() {
		return types.ErrStoreClosed
	}

	params, err := json.Marshal(a.TestInfo.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	criteria, err := json.Marshal(a.TestInfo.SuccessCriteria)
	if err != nil {
		return fmt.Errorf("encode success criteria: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m := a.Metrics
	res, err := tx.ExecContext(ctx, `INSERT INTO hypothesis_results
		(name, description, strategy, parameters, success_criteria, run_timestamp,
		 total_trades, winning_trades, losing_trades, win_rate, avg_return, total_return,
		 profit_factor, max_drawdown, sharpe_ratio, is_successful)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TestInfo.Name,
		a.TestInfo.Description,
		a.TestInfo.Strategy,
		string(params),
		string(criteria),
		a.TestInfo.Timestamp,
		m.TotalTrades,
		m.WinningTrades,
		m.LosingTrades,
		floatText(m.WinRate),
		floatText(m.AvgReturn),
		floatText(m.TotalReturn),
		floatText(m.ProfitFactor),
		floatText(m.MaxDrawdown),
		floatText(m.SharpeRatio),
		boolToInt(a.IsSuccessful),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	resultID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("result id: %w", err)
	}

	for i, t := range a.Trades {
		_, err := tx.ExecContext(ctx, `INSERT INTO hypothesis_trades
			(result_id, seq, signal, entry_price, exit_price, pnl, return_pct, condition_name, condition_value, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			resultID,
			i,
			t.Signal,
			floatText(t.EntryPrice),
			floatText(t.ExitPrice),
			floatText(t.PnL),
			floatText(t.ReturnPct),
			t.ConditionName,
			floatText(t.Condition),
			floatText(t.Confidence),
		)
		if err != nil {
			return fmt.Errorf("insert trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}
	return nil
}

// ListResults returns stored results, newest first. An empty strategy
// matches all; limit <= 0 means no limit.
func (s *SQLiteStore) ListResults(ctx context.Context, strategy string, limit int) ([]StoredResult, error) {
	if s.closed.Load() {
		return nil, types.ErrStoreClosed
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	query := `SELECT id, name, description, strategy, parameters, success_criteria, run_timestamp,
		total_trades, winning_trades, losing_trades, win_rate, avg_return, total_return,
		profit_factor, max_drawdown, sharpe_ratio, is_successful, created_at
		FROM hypothesis_results
		WHERE (? = '' OR strategy = ?)
		ORDER BY run_timestamp DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, strategy, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []StoredResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Trades are loaded after the result cursor is closed.
	_ = rows.Close()

	for i := range results {
		trades, err := s.trades(ctx, results[i].ID)
		if err != nil {
			return nil, err
		}
		results[i].Artifact.Trades = trades
	}

	return results, nil
}

// LatestResult returns the newest result for strategy.
func (s *SQLiteStore) LatestResult(ctx context.Context, strategy string) (*StoredResult, error) {
	results, err := s.ListResults(ctx, strategy, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrResultNotFound, strategy)
	}
	return &results[0], nil
}

// CountResults returns the number of stored results.
func (s *SQLiteStore) CountResults(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, types.ErrStoreClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hypothesis_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) trades(ctx context.Context, resultID int64) ([]hypothesis.ArtifactTrade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT signal, entry_price, exit_price, pnl, return_pct,
		condition_name, condition_value, confidence
		FROM hypothesis_trades WHERE result_id = ? ORDER BY seq`, resultID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer func() { _ = rows.Close() }()

	trades := make([]hypothesis.ArtifactTrade, 0)
	for rows.Next() {
		var t hypothesis.ArtifactTrade
		var entry, exit, pnl, ret, cond, conf string

		if err := rows.Scan(&t.Signal, &entry, &exit, &pnl, &ret, &t.ConditionName, &cond, &conf); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}

		t.EntryPrice = textFloat(entry)
		t.ExitPrice = textFloat(exit)
		t.PnL = textFloat(pnl)
		t.ReturnPct = textFloat(ret)
		t.Condition = textFloat(cond)
		t.Confidence = textFloat(conf)

		trades = append(trades, t)
	}

	return trades, rows.Err()
}

func scanResult(rows *sql.Rows) (StoredResult, error) {
	var r StoredResult
	var params, criteria string
	var winRate, avgReturn, totalReturn, profitFactor, maxDrawdown, sharpe string
	var successful int
	var createdAt sql.NullTime

	info := &r.Artifact.TestInfo
	m := &r.Artifact.Metrics
	if err := rows.Scan(
		&r.ID,
		&info.Name,
		&info.Description,
		&info.Strategy,
		&params,
		&criteria,
		&info.Timestamp,
		&m.TotalTrades,
		&m.WinningTrades,
		&m.LosingTrades,
		&winRate,
		&avgReturn,
		&totalReturn,
		&profitFactor,
		&maxDrawdown,
		&sharpe,
		&successful,
		&createdAt,
	); err != nil {
		return r, fmt.Errorf("scan result: %w", err)
	}

	if err := json.Unmarshal([]byte(params), &info.Parameters); err != nil {
		return r, fmt.Errorf("decode parameters: %w", err)
	}
	if err := json.Unmarshal([]byte(criteria), &info.SuccessCriteria); err != nil {
		return r, fmt.Errorf("decode success criteria: %w", err)
	}

	m.WinRate = textFloat(winRate)
	m.AvgReturn = textFloat(avgReturn)
	m.TotalReturn = textFloat(totalReturn)
	m.ProfitFactor = textFloat(profitFactor)
	m.MaxDrawdown = textFloat(maxDrawdown)
	m.SharpeRatio = textFloat(sharpe)
	r.Artifact.IsSuccessful = successful == 1
	if createdAt.Valid {
		r.CreatedAt = createdAt.Time
	}

	return r, nil
}

// Close closes the database connection. Later calls return ErrStoreClosed.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return types.ErrStoreClosed
	}
	return s.db.Close()
}

// IsNotFound reports whether err means no stored result matched.
func IsNotFound(err error) bool {
	return errors.Is(err, types.ErrResultNotFound)
}

func floatText(f float64) string {
	return decimal.NewFromFloat(f).String()
}

func textFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
