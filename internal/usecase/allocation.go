package usecase

import (
	"context"
	"errors"
	"time"

	"AllocDesk/internal/allocation"
	"AllocDesk/internal/domain/models"
	domrepo "AllocDesk/internal/domain/repository"
	"AllocDesk/internal/middleware"
	"AllocDesk/internal/session"
	"AllocDesk/pkg/logger"
)

// AllocationUseCase provides business logic for portfolio sessions and
// their allocation state. Every mutation ends with a fresh snapshot
// pushed through the pipeline so stream consumers and the publisher see
// only normalized state.
type AllocationUseCase struct {
	store    *session.Store
	pipeline *middleware.SnapshotPipeline
	metrics  domrepo.Metrics
	log      *logger.Logger
}

func NewAllocationUseCase(store *session.Store, pipeline *middleware.SnapshotPipeline, metrics domrepo.Metrics, log *logger.Logger) *AllocationUseCase {
	return &AllocationUseCase{
		store:    store,
		pipeline: pipeline,
		metrics:  metrics,
		log:      log,
	}
}

// CreateSession registers a new session and returns its view.
func (uc *AllocationUseCase) CreateSession(ctx context.Context) (*models.SessionView, error) {
	sess := uc.store.Create()
	uc.metrics.RecordEvent("session_create")
	uc.log.Info("session created", logger.String("session_id", sess.ID))

	view := &models.SessionView{ID: sess.ID, CreatedAt: sess.CreatedAt}
	err := sess.Do(func(m *allocation.Manager) error {
		view.Snapshot = buildSnapshot(sess.ID, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetSession returns the session view for id.
func (uc *AllocationUseCase) GetSession(ctx context.Context, id string) (*models.SessionView, error) {
	sess, err := uc.store.Get(id)
	if err != nil {
		return nil, err
	}
	view := &models.SessionView{ID: sess.ID, CreatedAt: sess.CreatedAt}
	err = sess.Do(func(m *allocation.Manager) error {
		view.Snapshot = buildSnapshot(sess.ID, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// DeleteSession removes a session. Unknown IDs are not an error.
func (uc *AllocationUseCase) DeleteSession(ctx context.Context, id string) {
	uc.store.Delete(id)
	uc.metrics.RecordEvent("session_delete")
}

// SetSlotEnabled toggles one slot and returns the resulting snapshot.
func (uc *AllocationUseCase) SetSlotEnabled(ctx context.Context, id string, index int, enabled bool) (*models.AllocationSnapshot, error) {
	return uc.mutate(ctx, id, "slot_enabled", func(m *allocation.Manager) error {
		return m.SetSlotEnabled(index, enabled)
	})
}

// SetSlotText edits one slot's ticker text and returns the resulting
// snapshot. Validation failures still return the snapshot: the edit is
// local to the slot and the rest of the table stays usable.
func (uc *AllocationUseCase) SetSlotText(ctx context.Context, id string, index int, text string) (*models.AllocationSnapshot, error) {
	return uc.mutate(ctx, id, "slot_text", func(m *allocation.Manager) error {
		return m.SetSlotText(index, text)
	})
}

// SetWeight edits one symbol's weight and returns the resulting snapshot.
func (uc *AllocationUseCase) SetWeight(ctx context.Context, id string, symbol string, weight float64) (*models.AllocationSnapshot, error) {
	return uc.mutate(ctx, id, "weight", func(m *allocation.Manager) error {
		return m.SetWeight(symbol, weight)
	})
}

// GetAllocation returns the current snapshot without mutating anything.
func (uc *AllocationUseCase) GetAllocation(ctx context.Context, id string) (*models.AllocationSnapshot, error) {
	sess, err := uc.store.Get(id)
	if err != nil {
		return nil, err
	}
	var snap models.AllocationSnapshot
	err = sess.Do(func(m *allocation.Manager) error {
		snap = buildSnapshot(sess.ID, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// mutate runs fn under the session lock, records metrics, and pushes the
// post-edit snapshot. Slot-local validation errors are returned together
// with the snapshot so callers can report the problem and render the
// surviving state.
func (uc *AllocationUseCase) mutate(ctx context.Context, id, kind string, fn func(m *allocation.Manager) error) (*models.AllocationSnapshot, error) {
	sess, err := uc.store.Get(id)
	if err != nil {
		return nil, err
	}

	var snap models.AllocationSnapshot
	var editErr error
	err = sess.Do(func(m *allocation.Manager) error {
		editErr = fn(m)
		snap = buildSnapshot(sess.ID, m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case editErr == nil:
		uc.metrics.RecordEvent(kind)
	case errors.Is(editErr, allocation.ErrInvalidTickerFormat):
		uc.metrics.RecordRejection("invalid_ticker")
	case errors.Is(editErr, allocation.ErrDuplicateTicker):
		uc.metrics.RecordRejection("duplicate_ticker")
	case errors.Is(editErr, allocation.ErrUnknownSymbol):
		uc.metrics.RecordRejection("unknown_symbol")
	default:
		uc.metrics.RecordRejection("other")
	}

	if pushErr := uc.pipeline.Push(ctx, &snap); pushErr != nil {
		uc.log.Warn("snapshot push failed",
			logger.String("session_id", id),
			logger.Error(pushErr))
	}
	return &snap, editErr
}

// buildSnapshot copies the manager state into a read-only snapshot.
func buildSnapshot(sessionID string, m *allocation.Manager) models.AllocationSnapshot {
	tickers := m.ValidTickers()
	weights := m.Weights()
	fractions := m.Fractions()
	slots := m.Slots()

	snap := models.AllocationSnapshot{
		SessionID: sessionID,
		Tickers:   make([]string, 0, len(tickers)),
		Weights:   make(map[string]float64, len(weights)),
		Fractions: make(map[string]float64, len(fractions)),
		Slots:     make([]models.SlotView, 0, len(slots)),
		UpdatedAt: time.Now().UTC(),
	}
	for _, sym := range tickers {
		snap.Tickers = append(snap.Tickers, sym.String())
	}
	for sym, w := range weights {
		snap.Weights[sym.String()] = w
	}
	for sym, f := range fractions {
		snap.Fractions[sym.String()] = f
	}
	for _, s := range slots {
		snap.Slots = append(snap.Slots, models.SlotView{
			Index:   s.Index,
			Enabled: s.Enabled,
			Text:    s.Text,
			Ticker:  s.Ticker,
			Valid:   s.Valid,
		})
	}
	return snap
}
