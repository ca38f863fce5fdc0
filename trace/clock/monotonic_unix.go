//go:build unix

package clock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type monotonic struct{}

// Monotonic returns the CLOCK_MONOTONIC counter, ticking in nanoseconds.
func Monotonic() Source { return monotonic{} }

func (monotonic) Ticks() (uint64, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, fmt.Errorf("clock_gettime: %v: %w", err, ErrCounterUnavailable)
	}
	return uint64(ts.Nano()), nil
}

func (monotonic) Frequency() (uint64, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, fmt.Errorf("clock_gettime: %v: %w", err, ErrCounterUnavailable)
	}
	// Timespec values are nanoseconds regardless of the clock's granularity.
	return 1_000_000_000, nil
}
