package models

import "time"

// SlotView mirrors one ticker slot for API responses.
type SlotView struct {
	Index   int    `json:"index"`
	Enabled bool   `json:"enabled"`
	Text    string `json:"text"`
	Ticker  string `json:"ticker,omitempty"`
	Valid   bool   `json:"valid"`
}

// AllocationSnapshot is the read-only post-normalization view handed to
// renderers, the snapshot stream and the backtest trigger. Weights sum
// to 100 (or the map is empty); Tickers keeps slot order.
type AllocationSnapshot struct {
	SessionID string             `json:"session_id"`
	Tickers   []string           `json:"tickers"`
	Weights   map[string]float64 `json:"weights"`
	Fractions map[string]float64 `json:"fractions"`
	Slots     []SlotView         `json:"slots"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// SessionView is the session envelope returned by the sessions API.
type SessionView struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Snapshot  AllocationSnapshot `json:"snapshot"`
}
