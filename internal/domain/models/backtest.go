package models

import "time"

// PriceTable holds daily close prices per ticker as returned by the
// market data collaborator. Columns contains only tickers that had data.
type PriceTable struct {
	Columns map[string][]float64 `json:"columns"`
	Dates   []string             `json:"dates"`
}

// PortfolioStats are the portfolio-level figures produced by the
// backtest engine.
type PortfolioStats struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// AssetStats are per-ticker figures from the backtest engine.
type AssetStats struct {
	Ticker              string  `json:"ticker"`
	AnnualizedReturnPct float64 `json:"annualized_return_pct"`
	VolatilityPct       float64 `json:"volatility_pct"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
}

// EquityPoint is one sample of the portfolio value series.
type EquityPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// BacktestResult is the full outcome of one backtest run.
type BacktestResult struct {
	RunID          string         `json:"run_id"`
	SessionID      string         `json:"session_id"`
	Tickers        []string       `json:"tickers"`
	MissingTickers []string       `json:"missing_tickers,omitempty"`
	Start          string         `json:"start"`
	End            string         `json:"end"`
	InitialCapital float64        `json:"initial_capital"`
	Portfolio      PortfolioStats `json:"portfolio"`
	Assets         []AssetStats   `json:"assets"`
	Equity         []EquityPoint  `json:"equity,omitempty"`
	CompletedAt    time.Time      `json:"completed_at"`
}

// BacktestRun is one row of run history.
type BacktestRun struct {
	RunID          string    `json:"run_id"`
	SessionID      string    `json:"session_id"`
	Tickers        []string  `json:"tickers"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	InitialCapital float64   `json:"initial_capital"`
	TotalReturnPct float64   `json:"total_return_pct"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	CompletedAt    time.Time `json:"completed_at"`
}
