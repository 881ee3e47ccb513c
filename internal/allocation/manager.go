package allocation

import "fmt"

const (
	// DefaultMaxSlots is the number of ticker slots per portfolio.
	DefaultMaxSlots = 5

	// SumTolerance is the accepted drift around 100 for the weight sum.
	// Floating point residue below this is tolerated, not corrected.
	SumTolerance = 0.1
)

type slot struct {
	enabled bool
	rawText string
	ticker  Symbol // committed symbol, empty when none
	prev    Symbol // last committed symbol, drives stale-entry eviction
}

// SlotState is a read-only view of one slot.
type SlotState struct {
	Index   int    `json:"index"`
	Enabled bool   `json:"enabled"`
	Text    string `json:"text"`
	Ticker  string `json:"ticker,omitempty"`
	Valid   bool   `json:"valid"`
}

// Manager keeps a fixed set of ticker slots and their weight table
// consistent: weights of committed symbols always sum to 100 (within
// SumTolerance) or the table is empty. It is not safe for concurrent
// use; callers serialize access per portfolio session.
type Manager struct {
	slots       []slot
	allocations map[Symbol]float64
}

// NewManager creates a manager with the given slot count (DefaultMaxSlots
// when n <= 0).
func NewManager(n int) *Manager {
	if n <= 0 {
		n = DefaultMaxSlots
	}
	return &Manager{
		slots:       make([]slot, n),
		allocations: make(map[Symbol]float64),
	}
}

// MaxSlots returns the slot count.
func (m *Manager) MaxSlots() int {
	return len(m.slots)
}

// SetSlotEnabled toggles a slot. Disabling removes the slot's committed
// symbol from the weight table; enabling recommits the stored text, so a
// previously typed ticker comes back without retyping.
func (m *Manager) SetSlotEnabled(index int, enabled bool) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	s := &m.slots[index]
	if s.enabled == enabled {
		return nil
	}
	s.enabled = enabled

	if !enabled {
		m.evict(s.ticker)
		s.ticker = ""
		s.prev = ""
		m.renormalize()
		return nil
	}
	return m.SetSlotText(index, s.rawText)
}

// SetSlotText stores the raw text and commits it when the slot is enabled
// and the text normalizes to a valid symbol. Changing away from a
// previously committed symbol evicts that symbol's weight entry.
// Validation failures are local to the slot: the error reports the
// problem and the slot is simply left empty.
func (m *Manager) SetSlotText(index int, raw string) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	s := &m.slots[index]
	s.rawText = raw

	candidate, perr := ParseSymbol(raw)
	if candidate != s.prev {
		m.evict(s.prev)
		s.ticker = ""
		s.prev = ""
	}
	defer m.renormalize()

	if !s.enabled {
		return nil
	}
	if perr != nil {
		return perr
	}
	if candidate == "" {
		return nil
	}
	if other := m.holder(candidate, index); other >= 0 {
		return fmt.Errorf("%w: %s is held by slot %d", ErrDuplicateTicker, candidate, other)
	}

	s.ticker = candidate
	s.prev = candidate
	if _, ok := m.allocations[candidate]; !ok {
		m.allocations[candidate] = 0
	}
	return nil
}

// SetWeight sets a symbol's weight, clamped to [0,100], then renormalizes
// the whole table. The symbol must already have an allocation entry.
func (m *Manager) SetWeight(rawSymbol string, value float64) error {
	sym, err := ParseSymbol(rawSymbol)
	if err != nil {
		return err
	}
	if _, ok := m.allocations[sym]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, sym)
	}

	if value < 0 {
		value = 0
	} else if value > 100 {
		value = 100
	}
	m.allocations[sym] = value
	m.renormalize()
	return nil
}

// ValidTickers returns committed symbols in ascending slot order. The
// ordering is stable across edits, so display tabs and downstream calls
// see a deterministic sequence.
func (m *Manager) ValidTickers() []Symbol {
	out := make([]Symbol, 0, len(m.slots))
	for _, s := range m.slots {
		if s.enabled && s.ticker != "" {
			out = append(out, s.ticker)
		}
	}
	return out
}

// Weights returns a copy of the weight table. Non-empty tables sum to 100
// within SumTolerance.
func (m *Manager) Weights() map[Symbol]float64 {
	out := make(map[Symbol]float64, len(m.allocations))
	for sym, w := range m.allocations {
		out[sym] = w
	}
	return out
}

// Fractions returns weights scaled to [0,1], the form portfolio
// construction consumes.
func (m *Manager) Fractions() map[Symbol]float64 {
	out := make(map[Symbol]float64, len(m.allocations))
	for sym, w := range m.allocations {
		out[sym] = w / 100
	}
	return out
}

// Slots returns a read-only view of every slot.
func (m *Manager) Slots() []SlotState {
	out := make([]SlotState, len(m.slots))
	for i, s := range m.slots {
		out[i] = SlotState{
			Index:   i,
			Enabled: s.enabled,
			Text:    s.rawText,
			Ticker:  s.ticker.String(),
			Valid:   s.ticker != "",
		}
	}
	return out
}

// Reset clears all slots and the weight table.
func (m *Manager) Reset() {
	m.slots = make([]slot, len(m.slots))
	m.allocations = make(map[Symbol]float64)
}

func (m *Manager) checkIndex(index int) error {
	if index < 0 || index >= len(m.slots) {
		return fmt.Errorf("%w: %d (max %d)", ErrSlotOutOfRange, index, len(m.slots)-1)
	}
	return nil
}

// holder returns the index of another slot holding sym, or -1.
func (m *Manager) holder(sym Symbol, except int) int {
	for i, s := range m.slots {
		if i != except && s.ticker == sym {
			return i
		}
	}
	return -1
}

func (m *Manager) evict(sym Symbol) {
	if sym == "" {
		return
	}
	delete(m.allocations, sym)
}

// renormalize rescales the table so weights sum to 100. An all-zero table
// falls back to an equal split so portfolio construction never receives a
// degenerate allocation.
func (m *Manager) renormalize() {
	if len(m.allocations) == 0 {
		return
	}
	var total float64
	for _, w := range m.allocations {
		total += w
	}
	if total == 0 {
		equal := 100 / float64(len(m.allocations))
		for sym := range m.allocations {
			m.allocations[sym] = equal
		}
		return
	}
	for sym, w := range m.allocations {
		m.allocations[sym] = w / total * 100
	}
}
