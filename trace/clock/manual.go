package clock

import "sync/atomic"

// Manual is a deterministic Source for tests and replay tooling. Each Ticks
// call returns the current value and then advances it by Step.
type Manual struct {
	Hz   uint64
	Step uint64

	now  atomic.Uint64
	fail atomic.Bool
}

// NewManual returns a counter starting at start with the given frequency.
func NewManual(start, hz, step uint64) *Manual {
	m := &Manual{Hz: hz, Step: step}
	m.now.Store(start)
	return m
}

// Ticks returns the counter value, or ErrCounterUnavailable after Break.
func (m *Manual) Ticks() (uint64, error) {
	if m.fail.Load() {
		return 0, ErrCounterUnavailable
	}
	return m.now.Add(m.Step) - m.Step, nil
}

// Frequency returns Hz, or ErrCounterUnavailable after Break.
func (m *Manual) Frequency() (uint64, error) {
	if m.fail.Load() {
		return 0, ErrCounterUnavailable
	}
	return m.Hz, nil
}

// Break makes every later read fail.
func (m *Manual) Break() { m.fail.Store(true) }

// Repair undoes Break.
func (m *Manual) Repair() { m.fail.Store(false) }
