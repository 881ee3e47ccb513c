package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"AllocDesk/internal/allocation"
	"AllocDesk/internal/middleware"
	"AllocDesk/internal/session"
	"AllocDesk/pkg/logger"
)

type fakeMetrics struct {
	mu         sync.Mutex
	events     map[string]int
	rejections map[string]int
	backtests  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		events:     make(map[string]int),
		rejections: make(map[string]int),
		backtests:  make(map[string]int),
	}
}

func (m *fakeMetrics) RecordEvent(kind string) {
	m.mu.Lock()
	m.events[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordRejection(reason string) {
	m.mu.Lock()
	m.rejections[reason]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordBacktest(result string) {
	m.mu.Lock()
	m.backtests[result]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordActiveSessions(int)      {}
func (m *fakeMetrics) RecordLatency(string, float64) {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newAllocationUC(t *testing.T) (*AllocationUseCase, *fakeMetrics, *middleware.SnapshotPipeline) {
	t.Helper()
	metrics := newFakeMetrics()
	pipeline := middleware.NewSnapshotPipeline(nil, metrics)
	store := session.NewStore()
	return NewAllocationUseCase(store, pipeline, metrics, testLogger(t)), metrics, pipeline
}

func TestCreateAndGetSession(t *testing.T) {
	uc, _, _ := newAllocationUC(t)
	ctx := context.Background()

	view, err := uc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.ID == "" {
		t.Fatal("expected session ID")
	}
	if len(view.Snapshot.Slots) != allocation.DefaultMaxSlots {
		t.Fatalf("expected %d slots, got %d", allocation.DefaultMaxSlots, len(view.Snapshot.Slots))
	}

	got, err := uc.GetSession(ctx, view.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != view.ID {
		t.Fatalf("expected %s, got %s", view.ID, got.ID)
	}
}

func TestGetSessionUnknown(t *testing.T) {
	uc, _, _ := newAllocationUC(t)
	if _, err := uc.GetSession(context.Background(), "nope"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEditFlowProducesNormalizedSnapshot(t *testing.T) {
	uc, _, _ := newAllocationUC(t)
	ctx := context.Background()

	view, err := uc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := uc.SetSlotEnabled(ctx, view.ID, 0, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := uc.SetSlotText(ctx, view.ID, 0, "aapl"); err != nil {
		t.Fatalf("text: %v", err)
	}
	if _, err := uc.SetSlotEnabled(ctx, view.ID, 1, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	snap, err := uc.SetSlotText(ctx, view.ID, 1, "msft")
	if err != nil {
		t.Fatalf("text: %v", err)
	}

	var total float64
	for _, w := range snap.Weights {
		total += w
	}
	if math.Abs(total-100) > allocation.SumTolerance {
		t.Fatalf("weights sum to %f", total)
	}
	if len(snap.Tickers) != 2 || snap.Tickers[0] != "AAPL" || snap.Tickers[1] != "MSFT" {
		t.Fatalf("unexpected tickers %v", snap.Tickers)
	}
}

func TestInvalidEditStillReturnsSnapshot(t *testing.T) {
	uc, metrics, _ := newAllocationUC(t)
	ctx := context.Background()

	view, _ := uc.CreateSession(ctx)
	if _, err := uc.SetSlotEnabled(ctx, view.ID, 0, true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	snap, err := uc.SetSlotText(ctx, view.ID, 0, "NOT OK")
	if !errors.Is(err, allocation.ErrInvalidTickerFormat) {
		t.Fatalf("expected ErrInvalidTickerFormat, got %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot alongside the validation error")
	}
	if metrics.rejections["invalid_ticker"] != 1 {
		t.Fatalf("expected rejection recorded, got %v", metrics.rejections)
	}
}

func TestMutationPushesToStream(t *testing.T) {
	uc, _, pipeline := newAllocationUC(t)
	ctx := context.Background()

	view, _ := uc.CreateSession(ctx)
	ch, cancel := pipeline.Subscribe(view.ID)
	defer cancel()

	if _, err := uc.SetSlotEnabled(ctx, view.ID, 0, true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	select {
	case snap := <-ch:
		if snap.SessionID != view.ID {
			t.Fatalf("unexpected session %s", snap.SessionID)
		}
	default:
		t.Fatal("no snapshot on the stream after a mutation")
	}
}

func TestSetWeightUnknownSession(t *testing.T) {
	uc, _, _ := newAllocationUC(t)
	if _, err := uc.SetWeight(context.Background(), "missing", "AAPL", 50); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	uc, _, _ := newAllocationUC(t)
	ctx := context.Background()

	view, _ := uc.CreateSession(ctx)
	uc.DeleteSession(ctx, view.ID)

	if _, err := uc.GetSession(ctx, view.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
