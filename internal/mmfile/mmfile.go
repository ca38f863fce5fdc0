// Package mmfile provides memory mappings used as segment backing storage.
// A file-backed mapping lets a collector process read segments the producer
// is filling; an anonymous mapping keeps large segments off the Go heap.
package mmfile

import "errors"

// ErrClosed indicates use of a mapping after Close.
var ErrClosed = errors.New("mmfile: mapping closed")

// Mapping is a read/write region of memory.
type Mapping struct {
	data  []byte
	sync  func([]byte) error
	close func([]byte) error
}

// Bytes returns the mapped region. It is invalid after Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Sync writes dirty pages back to the backing file, if any.
func (m *Mapping) Sync() error {
	if m.data == nil {
		return ErrClosed
	}
	return m.sync(m.data)
}

// Close releases the mapping. Calling Close twice is a no-op.
func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return m.close(data)
}
