// Package rotate drives one producer's segment through its lifecycle:
// bootstrap, fill, hand off to a sink when full, reset, repeat.
//
// The trace package never decides when a segment is full; this package is
// that policy. A Producer is owned by one goroutine and is not safe for
// concurrent use. Run one Producer per traced thread, sharing a sink.
package rotate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/joshuapare/calltrace/internal/mmfile"
	"github.com/joshuapare/calltrace/trace"
	"github.com/joshuapare/calltrace/trace/clock"
	"github.com/joshuapare/calltrace/trace/sink"
)

// DefaultSegmentSize is the capacity of each segment when none is configured.
const DefaultSegmentSize = 64 << 10

// MinSegmentSize holds a header plus one empty-payload record.
const MinSegmentSize = trace.HeaderRecordSize + trace.PrefixSize

// ErrRecordTooLarge indicates a record that would not fit even an empty
// segment, so rotating cannot help.
var ErrRecordTooLarge = errors.New("rotate: record larger than a segment")

// ErrClosed indicates use of a Producer after Close.
var ErrClosed = errors.New("rotate: producer closed")

// Stats counts a producer's activity.
type Stats struct {
	Records   uint64 // Records allocated, headers excluded
	Segments  uint64 // Segments handed off
	Bytes     uint64 // Segment bytes handed off
	Salvaged  uint64 // Partial segments handed off after a counter fault
	Rotations uint64 // Handoffs caused by a full segment
}

// Option configures a Producer.
type Option func(*Producer)

// WithSegmentSize sets the capacity of each segment.
func WithSegmentSize(n int) Option {
	return func(p *Producer) { p.size = n }
}

// WithLogger sets the logger for rotation and fault events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Producer) { p.log = l }
}

// WithMappedFile backs the segment with a shared mapping of path, so another
// process can observe it while it fills.
func WithMappedFile(path string) Option {
	return func(p *Producer) {
		p.backing = func(size int) (*mmfile.Mapping, error) { return mmfile.Create(path, size) }
	}
}

// WithAnonymousMapping backs the segment with anonymous mapped memory
// instead of the Go heap.
func WithAnonymousMapping() Option {
	return func(p *Producer) { p.backing = mmfile.Anonymous }
}

// Producer owns one segment and rotates it into a sink.
type Producer struct {
	sess    *trace.Session
	out     sink.Sink
	log     *slog.Logger
	size    int
	backing func(int) (*mmfile.Mapping, error)
	mapping *mmfile.Mapping

	seg    *trace.Segment
	seq    uint64
	stats  Stats
	closed bool
}

// New returns a Producer that bootstraps segments with sess and hands them
// to out.
func New(sess *trace.Session, out sink.Sink, opts ...Option) (*Producer, error) {
	if sess == nil {
		return nil, trace.ErrNilSession
	}
	if out == nil {
		return nil, errors.New("rotate: nil sink")
	}
	p := &Producer{
		sess: sess,
		out:  out,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		size: DefaultSegmentSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.size < MinSegmentSize {
		return nil, fmt.Errorf("rotate: segment size %d below minimum %d", p.size, MinSegmentSize)
	}

	var b []byte
	if p.backing != nil {
		m, err := p.backing(p.size)
		if err != nil {
			return nil, fmt.Errorf("rotate: segment backing: %w", err)
		}
		p.mapping = m
		b = m.Bytes()
	} else {
		b = make([]byte, p.size)
	}
	seg, err := trace.NewSegment(b)
	if err != nil {
		p.release()
		return nil, err
	}
	p.seg = seg
	return p, nil
}

// Stats returns the producer's counters.
func (p *Producer) Stats() Stats { return p.stats }

// Segment exposes the active segment for inspection. It must not be written
// outside the Producer.
func (p *Producer) Segment() *trace.Segment { return p.seg }

// Allocate returns a payload of size bytes for a record of type typ,
// rotating the segment first if it is full.
func (p *Producer) Allocate(ctx context.Context, typ trace.RecordType, size int) ([]byte, error) {
	var out []byte
	err := p.Append(ctx, func(seg *trace.Segment) error {
		var err error
		out, err = trace.AllocateTraceRecord(seg, typ, size)
		return err
	})
	return out, err
}

// Append runs write against the active segment. When write reports
// trace.ErrInsufficientSpace the segment is handed off and write runs once
// more on a fresh one, unless the refused record could not fit even an empty
// segment, in which case ErrRecordTooLarge is returned and nothing is handed
// off. write must leave the segment untouched when it fails, which every
// allocator in package trace does.
func (p *Producer) Append(ctx context.Context, write func(*trace.Segment) error) error {
	if p.closed {
		return ErrClosed
	}
	if err := p.ensureHeader(); err != nil {
		return err
	}
	err := write(p.seg)
	switch {
	case err == nil:
		p.stats.Records++
		return nil
	case errors.Is(err, clock.ErrCounterUnavailable):
		return p.salvage(ctx, err)
	case !errors.Is(err, trace.ErrInsufficientSpace):
		return err
	}

	if !p.hasRecords() || p.neverFits(err) {
		return fmt.Errorf("%w: %w", ErrRecordTooLarge, err)
	}
	if err := p.handoff(ctx); err != nil {
		return err
	}
	p.stats.Rotations++
	if err := p.ensureHeader(); err != nil {
		return err
	}
	if err := write(p.seg); err != nil {
		if errors.Is(err, trace.ErrInsufficientSpace) {
			return fmt.Errorf("%w: %w", ErrRecordTooLarge, err)
		}
		if errors.Is(err, clock.ErrCounterUnavailable) {
			return p.salvage(ctx, err)
		}
		return err
	}
	p.stats.Records++
	return nil
}

// Flush hands off the active segment if it holds any records.
func (p *Producer) Flush(ctx context.Context) error {
	if p.closed {
		return ErrClosed
	}
	if !p.hasRecords() {
		return nil
	}
	return p.handoff(ctx)
}

// Close flushes the active segment and releases its backing memory. The
// sink is left open; it may be shared with other producers.
func (p *Producer) Close(ctx context.Context) error {
	if p.closed {
		return nil
	}
	err := p.Flush(ctx)
	p.closed = true
	return errors.Join(err, p.release())
}

func (p *Producer) ensureHeader() error {
	if p.seg.Bootstrapped() {
		return nil
	}
	if err := trace.WriteSegmentHeader(p.sess, p.seg); err != nil {
		return fmt.Errorf("rotate: bootstrap: %w", err)
	}
	return nil
}

// neverFits reports whether the refused record is larger than what a freshly
// bootstrapped segment can hold, so rotating would only flush early.
func (p *Producer) neverFits(err error) bool {
	var se *trace.SpaceError
	return errors.As(err, &se) && se.Need > p.seg.Cap()-trace.HeaderRecordSize
}

func (p *Producer) hasRecords() bool {
	return p.seg.Bootstrapped() && p.seg.Len() > trace.HeaderRecordSize
}

// handoff passes the consumed bytes to the sink and resets the segment. On
// sink failure the segment is kept so no records are lost.
func (p *Producer) handoff(ctx context.Context) error {
	hdr, err := p.seg.Header()
	if err != nil {
		return err
	}
	if p.mapping != nil {
		if err := p.mapping.Sync(); err != nil {
			p.log.Warn("segment mapping sync failed", "err", err)
		}
	}
	p.seq++
	h := sink.Handoff{Sequence: p.seq, ThreadID: hdr.ThreadID, Data: p.seg.Bytes()}
	if err := p.out.Consume(ctx, h); err != nil {
		p.seq--
		p.log.Error("segment handoff failed", "seq", h.Sequence, "bytes", len(h.Data), "err", err)
		return fmt.Errorf("rotate: handoff: %w", err)
	}
	p.stats.Segments++
	p.stats.Bytes += uint64(len(h.Data))
	p.log.Debug("segment handed off",
		"seq", h.Sequence, "thread", hdr.ThreadID, "bytes", len(h.Data), "capacity", p.seg.Cap())
	p.seg.Reset()
	return nil
}

// salvage hands off whatever was written before the counter failed, then
// reports the fault.
func (p *Producer) salvage(ctx context.Context, cause error) error {
	p.log.Error("trace counter unavailable", "err", cause)
	if p.hasRecords() {
		if err := p.handoff(ctx); err != nil {
			return errors.Join(cause, err)
		}
		p.stats.Salvaged++
	} else {
		p.seg.Reset()
	}
	return cause
}

func (p *Producer) release() error {
	if p.mapping == nil {
		return nil
	}
	err := p.mapping.Close()
	p.mapping = nil
	return err
}
