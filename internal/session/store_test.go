package session

import (
	"errors"
	"testing"
	"time"

	"AllocDesk/internal/allocation"
)

func TestCreateAndGet(t *testing.T) {
	store := NewStore()
	sess := store.Create()
	if sess.ID == "" {
		t.Fatal("expected session ID")
	}

	got, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != sess.ID {
		t.Fatalf("expected %s, got %s", sess.ID, got.ID)
	}
}

func TestGetUnknown(t *testing.T) {
	store := NewStore()
	if _, err := store.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := NewStore()
	sess := store.Create()
	store.Delete(sess.ID)

	if _, err := store.Get(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	// Deleting again must not panic or error.
	store.Delete(sess.ID)
}

func TestDoRefreshesLastAccess(t *testing.T) {
	store := NewStore()
	sess := store.Create()
	before := sess.LastAccess()

	time.Sleep(5 * time.Millisecond)
	err := sess.Do(func(m *allocation.Manager) error {
		return m.SetSlotEnabled(0, true)
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}

	if !sess.LastAccess().After(before) {
		t.Fatal("last access not refreshed")
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	store := NewStore(WithTTL(10 * time.Millisecond))
	old := store.Create()
	time.Sleep(20 * time.Millisecond)
	fresh := store.Create()

	store.sweep()

	if _, err := store.Get(old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("idle session should be swept, got %v", err)
	}
	if _, err := store.Get(fresh.ID); err != nil {
		t.Fatalf("fresh session swept: %v", err)
	}
}

func TestOnCountCallback(t *testing.T) {
	var last int
	store := NewStore(WithOnCount(func(n int) { last = n }))

	a := store.Create()
	store.Create()
	if last != 2 {
		t.Fatalf("expected count 2, got %d", last)
	}

	store.Delete(a.ID)
	if last != 1 {
		t.Fatalf("expected count 1, got %d", last)
	}
}

func TestOnEvictCallback(t *testing.T) {
	var evicted []string
	store := NewStore(
		WithTTL(10*time.Millisecond),
		WithOnEvict(func(id string) { evicted = append(evicted, id) }),
	)

	a := store.Create()
	store.Delete(a.ID)
	if len(evicted) != 1 || evicted[0] != a.ID {
		t.Fatalf("expected evict for %s, got %v", a.ID, evicted)
	}

	// Deleting an unknown ID must not fire the hook.
	store.Delete("nope")
	if len(evicted) != 1 {
		t.Fatalf("unexpected evict %v", evicted)
	}

	b := store.Create()
	time.Sleep(20 * time.Millisecond)
	store.sweep()
	if len(evicted) != 2 || evicted[1] != b.ID {
		t.Fatalf("expected sweep evict for %s, got %v", b.ID, evicted)
	}
}

func TestMaxSlotsApplied(t *testing.T) {
	store := NewStore(WithMaxSlots(3))
	sess := store.Create()

	err := sess.Do(func(m *allocation.Manager) error {
		if m.MaxSlots() != 3 {
			t.Fatalf("expected 3 slots, got %d", m.MaxSlots())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
}
