//go:build !unix

package mmfile

import (
	"fmt"
	"os"
)

// Create allocates size bytes and writes them to path on Sync and Close
// where mmap is not available.
func Create(path string, size int) (*Mapping, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	data := make([]byte, size)
	if existing, err := os.ReadFile(path); err == nil {
		copy(data, existing)
	}
	write := func(b []byte) error { return os.WriteFile(path, b, 0o644) }
	return &Mapping{data: data, sync: write, close: write}, nil
}

// Anonymous allocates size zeroed bytes on the heap.
func Anonymous(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	nop := func([]byte) error { return nil }
	return &Mapping{data: make([]byte, size), sync: nop, close: nop}, nil
}
