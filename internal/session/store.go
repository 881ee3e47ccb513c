package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"AllocDesk/internal/allocation"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session owns one portfolio's allocation state. All access to the
// manager goes through Do, which serializes edits so each interaction is
// one atomic step.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	manager    *allocation.Manager
	lastAccess time.Time
}

// Do runs fn with exclusive access to the session's allocation manager
// and refreshes the session's idle timer.
func (s *Session) Do(fn func(m *allocation.Manager) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
	return fn(s.manager)
}

// LastAccess reports when the session was last used.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// StoreOption configures Store.
type StoreOption func(*Store)

// WithTTL sets the idle lifetime after which a session is swept.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxSlots sets the slot count for new sessions.
func WithMaxSlots(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxSlots = n
		}
	}
}

// WithOnCount registers a callback fired whenever the session count
// changes, used to feed the active-sessions gauge.
func WithOnCount(fn func(int)) StoreOption {
	return func(s *Store) {
		s.onCount = fn
	}
}

// WithOnEvict registers a callback fired with each removed session ID,
// for dropping per-session state held elsewhere (rate limit buckets).
func WithOnEvict(fn func(id string)) StoreOption {
	return func(s *Store) {
		s.onEvict = fn
	}
}

// Store is an in-memory session registry with idle expiry.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl      time.Duration
	maxSlots int
	onCount  func(int)
	onEvict  func(string)
}

// NewStore creates a session store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      2 * time.Hour,
		maxSlots: allocation.DefaultMaxSlots,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new session and returns it.
func (s *Store) Create() *Session {
	now := time.Now()
	sess := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		manager:    allocation.NewManager(s.maxSlots),
		lastAccess: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	s.notify(count)
	return sess
}

// Get returns the session for id.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes a session. Removing an unknown ID is not an error.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	if existed && s.onEvict != nil {
		s.onEvict(id)
	}
	s.notify(count)
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartJanitor sweeps idle sessions every interval until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Store) sweep() {
	cutoff := time.Now().Add(-s.ttl)

	var evicted []string
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.LastAccess().Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if s.onEvict != nil {
		for _, id := range evicted {
			s.onEvict(id)
		}
	}
	s.notify(count)
}

func (s *Store) notify(count int) {
	if s.onCount != nil {
		s.onCount(count)
	}
}
