package allocation

import (
	"errors"
	"testing"
)

func TestParseSymbolNormalizes(t *testing.T) {
	sym, err := ParseSymbol("  aapl ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sym != "AAPL" {
		t.Fatalf("expected AAPL, got %s", sym)
	}
}

func TestParseSymbolEmpty(t *testing.T) {
	sym, err := ParseSymbol("   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sym != "" {
		t.Fatalf("expected empty symbol, got %q", sym)
	}
}

func TestParseSymbolRejects(t *testing.T) {
	cases := []string{"ABCDEF", "AAP1", "BRK.B", "A B", "123", "-"}
	for _, in := range cases {
		if _, err := ParseSymbol(in); !errors.Is(err, ErrInvalidTickerFormat) {
			t.Fatalf("input %q: expected ErrInvalidTickerFormat, got %v", in, err)
		}
	}
}

func TestParseSymbolMaxLength(t *testing.T) {
	sym, err := ParseSymbol("googl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sym != "GOOGL" {
		t.Fatalf("expected GOOGL, got %s", sym)
	}
}
