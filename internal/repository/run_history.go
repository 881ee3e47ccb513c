package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"AllocDesk/internal/domain/models"
	"AllocDesk/internal/domain/repository"
)

// RunHistorySchema is the DDL for the run history table, applied through
// the ClickHouse client's InitSchema at startup.
func RunHistorySchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id String,
		session_id String,
		tickers String,
		start_date Date,
		end_date Date,
		initial_capital Float64,
		total_return_pct Float64,
		sharpe_ratio Float64,
		max_drawdown_pct Float64,
		completed_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (session_id, completed_at)`, table)}
}

// ClickHouseRunHistory implements RunHistory on ClickHouse.
type ClickHouseRunHistory struct {
	db    *sql.DB
	table string
}

// NewClickHouseRunHistory creates the run history repository.
func NewClickHouseRunHistory(db *sql.DB, table string) repository.RunHistory {
	if table == "" {
		table = "backtest_runs"
	}
	return &ClickHouseRunHistory{db: db, table: table}
}

func (s *ClickHouseRunHistory) Store(ctx context.Context, run *models.BacktestRun) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(run_id, session_id, tickers, start_date, end_date, initial_capital,
		 total_return_pct, sharpe_ratio, max_drawdown_pct, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q,
		run.RunID,
		run.SessionID,
		strings.Join(run.Tickers, ","),
		run.Start,
		run.End,
		run.InitialCapital,
		run.TotalReturnPct,
		run.SharpeRatio,
		run.MaxDrawdownPct,
		run.CompletedAt,
	)
	return err
}

func (s *ClickHouseRunHistory) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.BacktestRun, error) {
	q := fmt.Sprintf(`SELECT run_id, session_id, tickers, toString(start_date), toString(end_date),
		initial_capital, total_return_pct, sharpe_ratio, max_drawdown_pct, completed_at
		FROM %s WHERE session_id = ? ORDER BY completed_at DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.BacktestRun
	for rows.Next() {
		var run models.BacktestRun
		var tickers string
		if err := rows.Scan(
			&run.RunID,
			&run.SessionID,
			&tickers,
			&run.Start,
			&run.End,
			&run.InitialCapital,
			&run.TotalReturnPct,
			&run.SharpeRatio,
			&run.MaxDrawdownPct,
			&run.CompletedAt,
		); err != nil {
			return nil, err
		}
		if tickers != "" {
			run.Tickers = strings.Split(tickers, ",")
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (s *ClickHouseRunHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseRunHistory) Close() error {
	return nil // pool is managed by pkg/clickhouse
}
