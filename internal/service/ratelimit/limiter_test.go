package ratelimit

import "testing"

func TestAllowWithinBurst(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0) {
			t.Fatalf("request %d should pass within burst", i)
		}
	}
	if l.Allow("k", 3, 0) {
		t.Fatal("request beyond burst should be rejected")
	}
}

func TestKeysIsolated(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatal("first request for a should pass")
	}
	if l.Allow("a", 1, 0) {
		t.Fatal("second request for a should be rejected")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatal("request for b should pass")
	}
}

func TestForgetResetsBucket(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 0) {
		t.Fatal("first request should pass")
	}
	l.Forget("k")
	if !l.Allow("k", 1, 0) {
		t.Fatal("request after forget should pass")
	}
}
