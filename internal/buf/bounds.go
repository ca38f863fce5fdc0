package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies two non-negative ints, returning ok = false when
// the product would overflow int or either operand is negative.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// CheckListBounds validates that count elements of elementSize bytes fit in a
// buffer of bufLen bytes starting at offset, and returns the end offset.
func CheckListBounds(bufLen, offset, count, elementSize int) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("negative offset: %d", offset)
	}
	totalSize, ok := MulOverflowSafe(count, elementSize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * elemSize=%d", count, elementSize)
	}
	endOffset, ok := AddOverflowSafe(offset, totalSize)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", offset, totalSize)
	}
	if endOffset > bufLen {
		return 0, fmt.Errorf("bounds: end=%d > len=%d", endOffset, bufLen)
	}
	return endOffset, nil
}

// Fits reports whether n bytes starting at cursor end at or before limit.
// Negative inputs and overflowing sums never fit.
//
// This is the single bounds primitive used by the segment allocator:
//
//	if !buf.Fits(write, prefix+size, end) {
//	    return ErrInsufficientSpace
//	}
func Fits(cursor, n, limit int) bool {
	if cursor < 0 || n < 0 || limit < 0 {
		return false
	}
	next, ok := AddOverflowSafe(cursor, n)
	return ok && next <= limit
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(b) {
		return nil, false
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > len(b) {
		return nil, false
	}
	return b[off:end], true
}

// Window is Slice with the capacity clipped to the length, so appends on the
// result reallocate instead of spilling into the bytes that follow.
func Window(b []byte, off, n int) ([]byte, bool) {
	s, ok := Slice(b, off, n)
	if !ok {
		return nil, false
	}
	return s[:n:n], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, ok := Slice(b, off, n)
	return ok
}

// Zero clears b in place.
func Zero(b []byte) {
	clear(b)
}
