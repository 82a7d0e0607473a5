package storage

// sqlite.go — persistencia de runs de backtest.
//
// Estrategia:
//   - `runs`: una fila por run con config, resumen y contadores de señales.
//   - `trades`, `equity_curve`, `open_positions`, `faults`: detalle por run,
//     borrado junto con el run.
//   - Todo el run se escribe en una sola transacción: o está completo o no está.
//   - Fechas de mercado como TEXT YYYY-MM-DD; timestamps como RFC3339 UTC.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    started_at       TEXT    NOT NULL,
    duration_ms      INTEGER NOT NULL DEFAULT 0,
    benchmark        TEXT    NOT NULL,
    start_date       TEXT    NOT NULL,
    end_date         TEXT    NOT NULL,
    config           TEXT    NOT NULL DEFAULT '{}',
    symbols          TEXT    NOT NULL DEFAULT '',
    starting_cash    REAL    NOT NULL,
    final_equity     REAL    NOT NULL,
    total_return     REAL    NOT NULL DEFAULT 0,
    cagr             REAL    NOT NULL DEFAULT 0,
    max_drawdown     REAL    NOT NULL DEFAULT 0,
    sharpe           REAL    NOT NULL DEFAULT 0,
    win_rate         REAL    NOT NULL DEFAULT 0,
    profit_factor    REAL,   -- NULL = sin pérdidas (infinito)
    avg_holding_days REAL    NOT NULL DEFAULT 0,
    trades_per_year  REAL    NOT NULL DEFAULT 0,
    exposure         REAL    NOT NULL DEFAULT 0,
    trade_count      INTEGER NOT NULL DEFAULT 0,
    trading_days     INTEGER NOT NULL DEFAULT 0,
    triggers         INTEGER NOT NULL DEFAULT 0,
    admitted         INTEGER NOT NULL DEFAULT 0,
    rejected         INTEGER NOT NULL DEFAULT 0,
    dropped_no_bar   INTEGER NOT NULL DEFAULT 0,
    dropped_held     INTEGER NOT NULL DEFAULT 0,
    deferred         INTEGER NOT NULL DEFAULT 0,
    unfunded         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trades (
    run_id       TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq          INTEGER NOT NULL,
    symbol       TEXT    NOT NULL,
    entry_date   TEXT    NOT NULL,
    entry_price  REAL    NOT NULL,
    exit_date    TEXT    NOT NULL,
    exit_price   REAL    NOT NULL,
    shares       INTEGER NOT NULL,
    exit_reason  TEXT    NOT NULL,
    gross_pnl    REAL    NOT NULL,
    net_pnl      REAL    NOT NULL,
    holding_days INTEGER NOT NULL,
    commission   REAL    NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS equity_curve (
    run_id    TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    date      TEXT    NOT NULL,
    cash      REAL    NOT NULL,
    positions INTEGER NOT NULL,
    equity    REAL    NOT NULL,
    PRIMARY KEY (run_id, date)
);

CREATE TABLE IF NOT EXISTS open_positions (
    run_id      TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    symbol      TEXT    NOT NULL,
    entry_date  TEXT    NOT NULL,
    entry_price REAL    NOT NULL,
    shares      INTEGER NOT NULL,
    entry_cost  REAL    NOT NULL,
    high_water  REAL    NOT NULL,
    days_held   INTEGER NOT NULL,
    last_close  REAL    NOT NULL,
    PRIMARY KEY (run_id, symbol)
);

CREATE TABLE IF NOT EXISTS faults (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    symbol TEXT NOT NULL,
    date   TEXT,
    reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// ErrRunNotFound lo devuelve GetRun para un ID desconocido.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStorage implementa ports.RunStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

var _ ports.RunStorage = (*SQLiteStorage)(nil)

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// SaveRun persiste el run completo en una transacción.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *domain.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	sum, c := run.Summary, run.Counters
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(id, started_at, duration_ms, benchmark, start_date, end_date, config, symbols,
			 starting_cash, final_equity, total_return, cagr, max_drawdown, sharpe, win_rate,
			 profit_factor, avg_holding_days, trades_per_year, exposure, trade_count, trading_days,
			 triggers, admitted, rejected, dropped_no_bar, dropped_held, deferred, unfunded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(),
		run.Benchmark,
		formatDate(run.Start),
		formatDate(run.End),
		run.ConfigJSON,
		strings.Join(run.Symbols, ","),
		sum.StartingCash, sum.FinalEquity, sum.TotalReturn, sum.CAGR, sum.MaxDrawdown, sum.Sharpe, sum.WinRate,
		finiteOrNull(sum.ProfitFactor),
		sum.AvgHoldingDays, sum.TradesPerYear, sum.Exposure, sum.TradeCount, sum.TradingDays,
		c.Triggers, c.Admitted, c.Rejected, c.DroppedNoBar, c.DroppedHeld, c.Deferred, c.Unfunded,
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run %s: %w", run.ID, err)
	}

	if err := insertTrades(ctx, tx, run); err != nil {
		return err
	}
	if err := insertCurve(ctx, tx, run); err != nil {
		return err
	}
	for _, p := range run.Open {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO open_positions
				(run_id, symbol, entry_date, entry_price, shares, entry_cost, high_water, days_held, last_close)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, p.Symbol, formatDate(p.EntryDate), p.EntryPrice, p.Shares, p.EntryCost, p.HighWater, p.DaysHeld, p.LastClose,
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert position %s: %w", p.Symbol, err)
		}
	}
	for _, f := range run.Faults {
		var date any
		if !f.Date.IsZero() {
			date = formatDate(f.Date)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO faults (run_id, symbol, date, reason) VALUES (?, ?, ?, ?)`,
			run.ID, f.Symbol, date, f.Reason,
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert fault %s: %w", f.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

func insertTrades(ctx context.Context, tx *sql.Tx, run *domain.RunResult) error {
	if len(run.Trades) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
			(run_id, seq, symbol, entry_date, entry_price, exit_date, exit_price, shares,
			 exit_reason, gross_pnl, net_pnl, holding_days, commission)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare trades: %w", err)
	}
	defer stmt.Close()

	for i, t := range run.Trades {
		if _, err := stmt.ExecContext(ctx,
			run.ID, i, t.Symbol,
			formatDate(t.EntryDate), t.EntryPrice,
			formatDate(t.ExitDate), t.ExitPrice,
			t.Shares, string(t.ExitReason),
			t.GrossPnL, t.NetPnL, t.HoldingDays, t.Commission,
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert trade %d: %w", i, err)
		}
	}
	return nil
}

func insertCurve(ctx context.Context, tx *sql.Tx, run *domain.RunResult) error {
	if len(run.Curve) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO equity_curve (run_id, date, cash, positions, equity) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare curve: %w", err)
	}
	defer stmt.Close()

	for _, p := range run.Curve {
		if _, err := stmt.ExecContext(ctx, run.ID, formatDate(p.Date), p.Cash, p.Positions, p.Equity); err != nil {
			return fmt.Errorf("storage.SaveRun: insert curve %s: %w", formatDate(p.Date), err)
		}
	}
	return nil
}

const runColumns = `
	id, started_at, duration_ms, benchmark, start_date, end_date, config, symbols,
	starting_cash, final_equity, total_return, cagr, max_drawdown, sharpe, win_rate,
	profit_factor, avg_holding_days, trades_per_year, exposure, trade_count, trading_days,
	triggers, admitted, rejected, dropped_no_bar, dropped_held, deferred, unfunded`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.RunResult, error) {
	var (
		run                domain.RunResult
		startedAt          string
		durationMs         int64
		startDate, endDate string
		symbols            string
		profitFactor       sql.NullFloat64
	)
	sum, c := &run.Summary, &run.Counters
	if err := row.Scan(
		&run.ID, &startedAt, &durationMs, &run.Benchmark, &startDate, &endDate, &run.ConfigJSON, &symbols,
		&sum.StartingCash, &sum.FinalEquity, &sum.TotalReturn, &sum.CAGR, &sum.MaxDrawdown, &sum.Sharpe, &sum.WinRate,
		&profitFactor, &sum.AvgHoldingDays, &sum.TradesPerYear, &sum.Exposure, &sum.TradeCount, &sum.TradingDays,
		&c.Triggers, &c.Admitted, &c.Rejected, &c.DroppedNoBar, &c.DroppedHeld, &c.Deferred, &c.Unfunded,
	); err != nil {
		return run, err
	}

	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	run.Start = parseDate(startDate)
	run.End = parseDate(endDate)
	if symbols != "" {
		run.Symbols = strings.Split(symbols, ",")
	}
	sum.ProfitFactor = math.Inf(1)
	if profitFactor.Valid {
		sum.ProfitFactor = profitFactor.Float64
	}
	return run, nil
}

// ListRuns devuelve los runs más recientes primero, sin detalle.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunResult
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListRuns: scan row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun devuelve el run completo. Devuelve ErrRunNotFound si no existe.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*domain.RunResult, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage.GetRun: %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.GetRun: scan run: %w", err)
	}

	if run.Trades, err = s.loadTrades(ctx, id); err != nil {
		return nil, err
	}
	if run.Curve, err = s.loadCurve(ctx, id); err != nil {
		return nil, err
	}
	if run.Open, err = s.loadOpen(ctx, id); err != nil {
		return nil, err
	}
	if run.Faults, err = s.loadFaults(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStorage) loadTrades(ctx context.Context, id string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, entry_date, entry_price, exit_date, exit_price, shares,
		       exit_reason, gross_pnl, net_pnl, holding_days, commission
		FROM trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRun: query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var entry, exit, reason string
		if err := rows.Scan(&t.Symbol, &entry, &t.EntryPrice, &exit, &t.ExitPrice, &t.Shares,
			&reason, &t.GrossPnL, &t.NetPnL, &t.HoldingDays, &t.Commission); err != nil {
			return nil, fmt.Errorf("storage.GetRun: scan trade: %w", err)
		}
		t.EntryDate, t.ExitDate = parseDate(entry), parseDate(exit)
		t.ExitReason = domain.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStorage) loadCurve(ctx context.Context, id string) ([]domain.PortfolioState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, cash, positions, equity FROM equity_curve WHERE run_id = ? ORDER BY date`, id)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRun: query curve: %w", err)
	}
	defer rows.Close()

	var curve []domain.PortfolioState
	for rows.Next() {
		var p domain.PortfolioState
		var date string
		if err := rows.Scan(&date, &p.Cash, &p.Positions, &p.Equity); err != nil {
			return nil, fmt.Errorf("storage.GetRun: scan curve: %w", err)
		}
		p.Date = parseDate(date)
		curve = append(curve, p)
	}
	return curve, rows.Err()
}

func (s *SQLiteStorage) loadOpen(ctx context.Context, id string) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, entry_date, entry_price, shares, entry_cost, high_water, days_held, last_close
		FROM open_positions WHERE run_id = ? ORDER BY symbol`, id)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRun: query positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		var entry string
		if err := rows.Scan(&p.Symbol, &entry, &p.EntryPrice, &p.Shares, &p.EntryCost, &p.HighWater, &p.DaysHeld, &p.LastClose); err != nil {
			return nil, fmt.Errorf("storage.GetRun: scan position: %w", err)
		}
		p.EntryDate = parseDate(entry)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadFaults(ctx context.Context, id string) ([]domain.DataFault, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, date, reason FROM faults WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRun: query faults: %w", err)
	}
	defer rows.Close()

	var out []domain.DataFault
	for rows.Next() {
		var f domain.DataFault
		var date sql.NullString
		if err := rows.Scan(&f.Symbol, &date, &f.Reason); err != nil {
			return nil, fmt.Errorf("storage.GetRun: scan fault: %w", err)
		}
		if date.Valid {
			f.Date = parseDate(date.String)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteRunsBefore elimina los runs iniciados antes de cutoff y devuelve
// cuántos borró.
func (s *SQLiteStorage) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := cutoff.UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.DeleteRunsBefore: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Los hijos se borran explícitamente: foreign_keys es por conexión.
	for _, table := range []string{"trades", "equity_curve", "open_positions", "faults"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, ts); err != nil {
			return 0, fmt.Errorf("storage.DeleteRunsBefore: delete %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("storage.DeleteRunsBefore: delete runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage.DeleteRunsBefore: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.DeleteRunsBefore: commit: %w", err)
	}
	return n, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(domain.DateLayout, s)
	return t
}

// finiteOrNull guarda ±Inf y NaN como NULL.
func finiteOrNull(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}
