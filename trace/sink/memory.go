package sink

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/joshuapare/calltrace/trace"
)

// Memory keeps copies of every consumed segment. It backs tests and the
// CLI's dry-run mode.
type Memory struct {
	mu       sync.Mutex
	o        options
	segments []Handoff
	closed   bool
}

// NewMemory returns an empty in-memory sink.
func NewMemory(opts ...Option) *Memory {
	return &Memory{o: buildOptions(opts)}
}

func (m *Memory) Consume(ctx context.Context, h Handoff) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.o.verify {
		if _, err := trace.Verify(h.Data); err != nil {
			return fmt.Errorf("sink: segment %d: %w", h.Sequence, err)
		}
	}
	h.Data = bytes.Clone(h.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.segments = append(m.segments, h)
	m.o.logger.Debug("segment stored", "seq", h.Sequence, "thread", h.ThreadID, "bytes", len(h.Data))
	return nil
}

// Segments returns the segments consumed so far, in arrival order.
func (m *Memory) Segments() []Handoff {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Handoff(nil), m.segments...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Sink = (*Memory)(nil)
