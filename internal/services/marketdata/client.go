package marketdata

import (
	"context"
	"fmt"
	"time"

	"AllocDesk/internal/domain/models"
	"AllocDesk/internal/services/httpbase"
)

const dateLayout = "2006-01-02"

// Client talks to the market data collaborator over HTTP.
type Client struct {
	base     *httpbase.HTTPServiceBase
	attempts int
}

// Option configures Client.
type Option func(*Client)

// WithAttempts sets how many tries a fetch gets.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// NewClient creates a market data client. apiKey may be empty for
// unauthenticated deployments.
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	var headers map[string]string
	if apiKey != "" {
		headers = map[string]string{"X-API-Key": apiKey}
	}
	c := &Client{
		base:     httpbase.New(baseURL, timeout, headers),
		attempts: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type dailyClosesRequest struct {
	Tickers []string `json:"tickers"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
}

// DailyCloses fetches daily close prices for the given tickers. The
// returned table may miss columns for tickers the provider has no data
// for; the caller decides what to do with the difference.
func (c *Client) DailyCloses(ctx context.Context, tickers []string, start, end time.Time) (*models.PriceTable, error) {
	if len(tickers) == 0 {
		return &models.PriceTable{Columns: map[string][]float64{}}, nil
	}

	req := dailyClosesRequest{
		Tickers: tickers,
		Start:   start.Format(dateLayout),
		End:     end.Format(dateLayout),
	}

	var table models.PriceTable
	if err := c.base.PostJSONWithRetry(ctx, "/prices/daily", req, &table, c.attempts); err != nil {
		return nil, fmt.Errorf("daily closes: %w", err)
	}
	if table.Columns == nil {
		table.Columns = map[string][]float64{}
	}
	return &table, nil
}
