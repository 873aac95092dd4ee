package sim

// GlobalSequencer hands out monotonically increasing timestamps used as
// epoch/write-order markers by the multiversion worker variant. Grounded
// on the original's global_sequencer.GlobalSequencer (not present in the
// retrieved source tree, reconstructed from its test: a counter starting
// at 0 or a supplied initial value, incremented by 1 or a supplied
// amount, returning the new value).
type GlobalSequencer struct {
	ts int64
}

// NewGlobalSequencer builds a GlobalSequencer starting at initial.
func NewGlobalSequencer(initial int64) *GlobalSequencer {
	return &GlobalSequencer{ts: initial}
}

// GetTS returns the current timestamp without advancing it.
func (s *GlobalSequencer) GetTS() int64 { return s.ts }

// IncrementTS advances the timestamp by amount (default 1 via
// IncrementTSBy1) and returns the new value.
func (s *GlobalSequencer) IncrementTS(amount int64) int64 {
	s.ts += amount
	return s.ts
}

// IncrementTSBy1 is the zero-argument form used by writers that don't
// need a custom increment.
func (s *GlobalSequencer) IncrementTSBy1() int64 { return s.IncrementTS(1) }
