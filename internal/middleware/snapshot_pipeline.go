package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AllocDesk/internal/domain/models"
	domrepo "AllocDesk/internal/domain/repository"
)

// SnapshotPipeline sits between the allocation usecase and snapshot
// consumers. Every post-normalization snapshot is fanned out to live
// stream subscribers and buffered toward the downstream publisher, so a
// slow or unavailable broker never blocks an edit.
type SnapshotPipeline struct {
	publisher domrepo.SnapshotPublisher // nil when publishing is disabled
	metrics   domrepo.Metrics
	bufSize   int
	bufCh     chan *models.AllocationSnapshot
	stopCh    chan struct{}
	started   bool
	mu        sync.Mutex

	subMu   sync.RWMutex
	subs    map[string]map[int]chan *models.AllocationSnapshot
	nextSub int
}

type PipelineOption func(*SnapshotPipeline)

// WithBufferSize sets the buffer used while the publisher is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewSnapshotPipeline creates a pipeline. publisher may be nil; the
// stream fan-out still works without one.
func NewSnapshotPipeline(publisher domrepo.SnapshotPublisher, metrics domrepo.Metrics, opts ...PipelineOption) *SnapshotPipeline {
	p := &SnapshotPipeline{
		publisher: publisher,
		metrics:   metrics,
		bufSize:   1000,
		stopCh:    make(chan struct{}),
		subs:      make(map[string]map[int]chan *models.AllocationSnapshot),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.AllocationSnapshot, p.bufSize)
	return p
}

// Start launches background flushing toward the publisher.
func (p *SnapshotPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case snap := <-p.bufCh:
				if snap == nil || p.publisher == nil {
					continue
				}
				if err := p.publisher.Publish(ctx, snap); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordRejection("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- snap:
					default:
						p.metrics.RecordRejection("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops background flushing.
func (p *SnapshotPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Push validates the snapshot and forwards it to stream subscribers and
// the publisher buffer. Slow subscribers miss intermediate snapshots
// rather than stalling the edit path.
func (p *SnapshotPipeline) Push(ctx context.Context, snap *models.AllocationSnapshot) error {
	start := time.Now()
	if err := validateSnapshot(snap); err != nil {
		p.metrics.RecordRejection("pipeline_validate")
		return err
	}

	p.fanOut(snap)

	if p.publisher != nil {
		select {
		case p.bufCh <- snap:
		default:
			p.metrics.RecordRejection("pipeline_buffer_full")
		}
	}
	p.metrics.RecordLatency("pipeline_push", time.Since(start).Seconds())
	return nil
}

// Subscribe registers a stream consumer for one session. The returned
// cancel function must be called when the consumer goes away.
func (p *SnapshotPipeline) Subscribe(sessionID string) (<-chan *models.AllocationSnapshot, func()) {
	ch := make(chan *models.AllocationSnapshot, 16)

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	if p.subs[sessionID] == nil {
		p.subs[sessionID] = make(map[int]chan *models.AllocationSnapshot)
	}
	p.subs[sessionID][id] = ch
	p.subMu.Unlock()

	cancel := func() {
		p.subMu.Lock()
		if m := p.subs[sessionID]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(p.subs, sessionID)
			}
		}
		p.subMu.Unlock()
	}
	return ch, cancel
}

func (p *SnapshotPipeline) fanOut(snap *models.AllocationSnapshot) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	for _, ch := range p.subs[snap.SessionID] {
		select {
		case ch <- snap:
		default:
			p.metrics.RecordRejection("pipeline_subscriber_slow")
		}
	}
}

func validateSnapshot(snap *models.AllocationSnapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot nil")
	}
	if snap.SessionID == "" {
		return fmt.Errorf("session id empty")
	}
	if len(snap.Weights) != len(snap.Tickers) {
		return fmt.Errorf("weights/tickers mismatch: %d vs %d", len(snap.Weights), len(snap.Tickers))
	}
	var total float64
	for _, w := range snap.Weights {
		if w < 0 {
			return fmt.Errorf("negative weight")
		}
		total += w
	}
	if len(snap.Weights) > 0 && (total < 100-0.1 || total > 100+0.1) {
		return fmt.Errorf("weights sum %f out of tolerance", total)
	}
	return nil
}
