package repository

import (
	"context"

	"AllocDesk/internal/domain/models"
)

// RunHistory persists completed backtest runs. Schema setup happens at
// startup through the ClickHouse client; Health backs the readiness
// probe.
type RunHistory interface {
	Store(ctx context.Context, run *models.BacktestRun) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.BacktestRun, error)
	Health(ctx context.Context) error
	Close() error
}

// SnapshotPublisher ships allocation snapshots to downstream consumers.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap *models.AllocationSnapshot) error
	Close() error
}

// Metrics records domain-level counters and gauges.
type Metrics interface {
	RecordEvent(kind string)
	RecordRejection(reason string)
	RecordBacktest(result string)
	RecordActiveSessions(n int)
	RecordLatency(op string, seconds float64)
}
