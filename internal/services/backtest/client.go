package backtest

import (
	"context"
	"fmt"
	"time"

	"AllocDesk/internal/domain/models"
	"AllocDesk/internal/domain/service"
	"AllocDesk/internal/services/httpbase"
)

// Client talks to the backtest engine collaborator over HTTP. The engine
// owns all portfolio math; this client only moves payloads.
type Client struct {
	base     *httpbase.HTTPServiceBase
	attempts int
}

// NewClient creates a backtest engine client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base:     httpbase.New(baseURL, timeout, nil),
		attempts: 3,
	}
}

// Run executes a portfolio backtest.
func (c *Client) Run(ctx context.Context, req *service.EngineRunRequest) (*service.EngineRunResponse, error) {
	var resp service.EngineRunResponse
	if err := c.base.PostJSONWithRetry(ctx, "/backtest/run", req, &resp, c.attempts); err != nil {
		return nil, fmt.Errorf("engine run: %w", err)
	}
	return &resp, nil
}

type assetStatsRequest struct {
	Ticker string    `json:"ticker"`
	Closes []float64 `json:"closes"`
}

// AssetStats computes per-asset figures for one ticker's close series.
func (c *Client) AssetStats(ctx context.Context, ticker string, closes []float64) (*models.AssetStats, error) {
	req := assetStatsRequest{Ticker: ticker, Closes: closes}

	var stats models.AssetStats
	if err := c.base.PostJSONWithRetry(ctx, "/stats/asset", req, &stats, c.attempts); err != nil {
		return nil, fmt.Errorf("asset stats %s: %w", ticker, err)
	}
	if stats.Ticker == "" {
		stats.Ticker = ticker
	}
	return &stats, nil
}
