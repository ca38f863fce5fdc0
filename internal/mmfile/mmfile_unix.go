//go:build unix

package mmfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Create maps size bytes of the file at path, creating or extending it as
// needed. Writes through the mapping reach the file.
func Create(path string, size int) (*Mapping, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close() // safe before return; mapping keeps pages alive

	if err := f.Truncate(int64(size)); err != nil {
		return nil, err
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmfile: mmap %s: %w", path, err)
	}
	return &Mapping{data: data, sync: msync, close: munmap}, nil
}

// Anonymous maps size bytes of zeroed memory not backed by any file.
func Anonymous(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmfile: anonymous mmap: %w", err)
	}
	return &Mapping{data: data, sync: func([]byte) error { return nil }, close: munmap}, nil
}

func msync(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}

func munmap(data []byte) error {
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}
