package backtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"AllocDesk/internal/domain/service"
)

func TestRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/backtest/run" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req service.EngineRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.InitialCapital != 10000 {
			t.Fatalf("unexpected capital %f", req.InitialCapital)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"portfolio": map[string]float64{
				"total_return_pct": 12.5,
				"sharpe_ratio":     1.1,
				"max_drawdown_pct": -8.2,
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	resp, err := c.Run(context.Background(), &service.EngineRunRequest{
		Tickers:        []string{"AAPL"},
		Fractions:      map[string]float64{"AAPL": 1},
		InitialCapital: 10000,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.Portfolio.TotalReturnPct != 12.5 {
		t.Fatalf("unexpected stats %+v", resp.Portfolio)
	}
}

func TestAssetStatsFillsTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]float64{
			"annualized_return_pct": 9.3,
			"volatility_pct":        21.0,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	stats, err := c.AssetStats(context.Background(), "MSFT", []float64{300, 301, 305})
	if err != nil {
		t.Fatalf("asset stats: %v", err)
	}
	if stats.Ticker != "MSFT" {
		t.Fatalf("expected ticker backfilled, got %q", stats.Ticker)
	}
	if stats.AnnualizedReturnPct != 9.3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
