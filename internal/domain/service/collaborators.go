package service

import (
	"context"
	"time"

	"AllocDesk/internal/domain/models"
)

// MarketData fetches daily close prices for a set of tickers. Tickers
// with no data are simply absent from the returned table's columns.
type MarketData interface {
	DailyCloses(ctx context.Context, tickers []string, start, end time.Time) (*models.PriceTable, error)
}

// BacktestEngine runs the portfolio simulation and per-asset statistics.
// The allocation core only supplies tickers, fractions and the price
// table; all financial math lives behind this boundary.
type BacktestEngine interface {
	Run(ctx context.Context, req *EngineRunRequest) (*EngineRunResponse, error)
	AssetStats(ctx context.Context, ticker string, closes []float64) (*models.AssetStats, error)
}

// EngineRunRequest is the payload for a backtest run.
type EngineRunRequest struct {
	Tickers        []string             `json:"tickers"`
	Fractions      map[string]float64   `json:"fractions"`
	Columns        map[string][]float64 `json:"columns"`
	Dates          []string             `json:"dates"`
	InitialCapital float64              `json:"initial_capital"`
}

// EngineRunResponse is the engine's portfolio-level answer.
type EngineRunResponse struct {
	Portfolio models.PortfolioStats `json:"portfolio"`
	Equity    []models.EquityPoint  `json:"equity"`
}
