// Package clock supplies the monotonic tick counter that timestamps every
// trace record, and the one-time calibration of its frequency that segment
// headers carry so consumers can convert ticks to wall time.
package clock

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCounterUnavailable indicates the hardware counter could not be read.
// Without timestamps no record is meaningful, so callers treat it as fatal
// for the operation in progress.
var ErrCounterUnavailable = errors.New("clock: counter unavailable")

// Source is a monotonic tick counter.
type Source interface {
	// Ticks returns the current counter value.
	Ticks() (uint64, error)
	// Frequency returns the number of ticks per second.
	Frequency() (uint64, error)
}

// Calibration is the immutable result of querying a Source's frequency once.
type Calibration struct {
	Frequency uint64
}

// Calibrate queries src for its frequency. A zero frequency is reported as
// an unavailable counter.
func Calibrate(src Source) (Calibration, error) {
	if src == nil {
		return Calibration{}, fmt.Errorf("calibrate: nil source: %w", ErrCounterUnavailable)
	}
	f, err := src.Frequency()
	if err != nil {
		return Calibration{}, fmt.Errorf("calibrate: %w", err)
	}
	if f == 0 {
		return Calibration{}, fmt.Errorf("calibrate: zero frequency: %w", ErrCounterUnavailable)
	}
	return Calibration{Frequency: f}, nil
}

var (
	processOnce sync.Once
	processCal  Calibration
	processErr  error
)

// Process calibrates the monotonic counter the first time it is called and
// returns the same result for the life of the process, so every segment
// header agrees on the resolution.
func Process() (Calibration, error) {
	processOnce.Do(func() {
		processCal, processErr = Calibrate(Monotonic())
	})
	return processCal, processErr
}

// Nanoseconds converts a tick delta to nanoseconds using c.
func (c Calibration) Nanoseconds(ticks uint64) uint64 {
	if c.Frequency == 0 {
		return 0
	}
	sec := ticks / c.Frequency
	rem := ticks % c.Frequency
	return sec*1e9 + rem*1e9/c.Frequency
}
