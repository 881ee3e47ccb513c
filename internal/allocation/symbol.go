package allocation

import (
	"fmt"
	"regexp"
	"strings"
)

// Symbol is a validated ticker: 1-5 uppercase ASCII letters.
type Symbol string

var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ParseSymbol normalizes raw input (trim, uppercase) and validates it.
// Empty input after trimming yields an empty Symbol and no error; any
// other input that does not match the ticker pattern yields
// ErrInvalidTickerFormat.
func ParseSymbol(raw string) (Symbol, error) {
	candidate := strings.ToUpper(strings.TrimSpace(raw))
	if candidate == "" {
		return "", nil
	}
	if !symbolPattern.MatchString(candidate) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTickerFormat, candidate)
	}
	return Symbol(candidate), nil
}

func (s Symbol) String() string {
	return string(s)
}
