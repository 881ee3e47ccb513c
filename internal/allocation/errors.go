package allocation

import "errors"

var (
	// ErrSlotOutOfRange is returned when a slot index is outside [0, MaxSlots).
	ErrSlotOutOfRange = errors.New("slot index out of range")

	// ErrInvalidTickerFormat is returned when slot text does not normalize
	// to a 1-5 letter ticker. The slot is left with no committed symbol.
	ErrInvalidTickerFormat = errors.New("invalid ticker format")

	// ErrDuplicateTicker is returned when a slot commits a symbol already
	// held by another enabled slot. The earlier slot keeps the entry.
	ErrDuplicateTicker = errors.New("ticker already assigned to another slot")

	// ErrUnknownSymbol is returned by weight edits targeting a symbol with
	// no allocation entry.
	ErrUnknownSymbol = errors.New("unknown symbol")
)
