package trace

import (
	"fmt"

	"github.com/joshuapare/calltrace/internal/buf"
	"github.com/joshuapare/calltrace/internal/format"
	"github.com/joshuapare/calltrace/trace/clock"
)

// noHeader marks a segment that has not been bootstrapped. A header payload
// always follows its prefix, so offset 0 never names a real header.
const noHeader = 0

// Segment is a fixed-capacity byte region filled front to back with framed
// records. The caller owns the backing buffer; the segment owns three offsets
// into it:
//
//	0 <= write <= end == len(buf)
//	header == 0 until bootstrap, then the fixed offset of the header payload
//
// A Segment belongs to exactly one producer while active. Nothing here locks.
type Segment struct {
	buf    []byte
	write  int
	end    int
	header int
	src    clock.Source
}

// NewSegment wraps b as an empty, not yet bootstrapped segment. The whole
// slice is usable capacity.
func NewSegment(b []byte) (*Segment, error) {
	if b == nil {
		return nil, ErrNoStorage
	}
	if uint64(len(b)) > format.MaxSegmentSize {
		return nil, fmt.Errorf("trace: segment of %d bytes: %w", len(b), ErrTooLarge)
	}
	return &Segment{buf: b, end: len(b), header: noHeader}, nil
}

// Reset returns the segment to its pre-bootstrap state so the buffer can be
// reused after handoff. Bytes are not cleared; the next bootstrap overwrites
// from the start.
func (s *Segment) Reset() {
	s.write = 0
	s.header = noHeader
	s.src = nil
}

// Bootstrapped reports whether the header record has been written.
func (s *Segment) Bootstrapped() bool { return s.header != noHeader }

// HeaderOffset returns the offset of the header payload within the buffer.
func (s *Segment) HeaderOffset() (int, bool) {
	return s.header, s.header != noHeader
}

// WriteOffset returns the offset of the next free byte.
func (s *Segment) WriteOffset() int { return s.write }

// End returns the exclusive upper bound of the segment.
func (s *Segment) End() int { return s.end }

// Cap returns the total capacity in bytes.
func (s *Segment) Cap() int { return s.end }

// Len returns the number of bytes consumed by records so far.
func (s *Segment) Len() int { return s.write }

// Remaining returns the number of free bytes.
func (s *Segment) Remaining() int { return s.end - s.write }

// Full reports whether the write cursor has reached the end bound.
func (s *Segment) Full() bool { return s.write == s.end }

// Bytes returns the consumed portion of the buffer. It aliases the segment;
// callers handing it off must not keep it past the next Reset.
func (s *Segment) Bytes() []byte { return s.buf[:s.write:s.write] }

// Header decodes the segment header payload.
func (s *Segment) Header() (SegmentHeader, error) {
	if !s.Bootstrapped() {
		return SegmentHeader{}, ErrNotBootstrapped
	}
	return format.ParseSegmentHeader(s.buf[s.header : s.header+SegmentHeaderSize])
}

// CanAllocate reports whether n more bytes fit in the segment. It has no side
// effects, so a producer can probe several candidate sizes before committing.
// The error is non-nil only for contract violations: a nil or storage-less
// segment, or n <= 0.
func CanAllocate(seg *Segment, n int) (bool, error) {
	if seg == nil {
		return false, ErrNilSegment
	}
	if seg.buf == nil {
		return false, ErrNoStorage
	}
	if n <= 0 {
		return false, fmt.Errorf("trace: can allocate %d: %w", n, ErrZeroLength)
	}
	return buf.Fits(seg.write, n, seg.end), nil
}

// WriteSegmentHeader bootstraps seg: it links the header payload to the
// segment, fills in the producer's thread id and the session's counter
// resolution, and then frames the header through the generic allocator so
// the header's own record is charged to segment_length.
//
// Bootstrapping twice, or a segment too small for the header record, is a
// contract violation. On error the segment is unchanged.
func WriteSegmentHeader(sess *Session, seg *Segment) error {
	if sess == nil {
		return ErrNilSession
	}
	if seg == nil {
		return ErrNilSegment
	}
	if seg.Bootstrapped() {
		return ErrAlreadyBootstrapped
	}
	ok, err := CanAllocate(seg, HeaderRecordSize)
	if err != nil {
		return err
	}
	if !ok {
		return &SpaceError{Type: TypeSegmentHeader, Need: HeaderRecordSize, Free: seg.Remaining()}
	}
	ts, err := sess.src.Ticks()
	if err != nil {
		return fmt.Errorf("trace: header timestamp: %w", err)
	}

	// The header must be linked and zeroed before the allocator runs: the
	// allocator is what charges the header record to segment_length.
	hdr := seg.write + PrefixSize
	payload := seg.buf[hdr : hdr+SegmentHeaderSize]
	buf.Zero(payload)
	format.PutSegmentHeader(payload, SegmentHeader{
		ThreadID:        sess.ThreadID(),
		TimerResolution: sess.cal.Frequency,
	})
	seg.header = hdr
	seg.src = sess.src

	got := seg.commit(TypeSegmentHeader, SegmentHeaderSize, ts)
	if got != hdr {
		seg.write = hdr - PrefixSize
		seg.header = noHeader
		seg.src = nil
		return fmt.Errorf("trace: header at %d, allocated %d: %w", hdr, got, ErrHeaderMisplaced)
	}
	return nil
}

// AllocateTraceRecord frames a record of type typ with a size-byte payload at
// the write cursor and returns the payload for the caller to fill. The
// returned slice has its capacity clipped to size.
//
// The prefix, the cursor and the header's segment_length are all updated
// before return. If the record does not fit, or any other precondition
// fails, nothing in the segment changes.
func AllocateTraceRecord(seg *Segment, typ RecordType, size int) ([]byte, error) {
	if seg == nil {
		return nil, ErrNilSegment
	}
	if seg.buf == nil {
		return nil, ErrNoStorage
	}
	if !seg.Bootstrapped() {
		return nil, ErrNotBootstrapped
	}
	if typ.Reserved() {
		return nil, fmt.Errorf("trace: allocate %s: %w", typ, ErrReservedType)
	}
	switch {
	case size < 0:
		return nil, fmt.Errorf("trace: allocate %s of %d bytes: %w", typ, size, ErrZeroLength)
	case size == 0 && !typ.EmptyPayload():
		return nil, fmt.Errorf("trace: allocate %s: %w", typ, ErrEmptyPayload)
	case uint64(size) > format.MaxPayloadSize:
		return nil, fmt.Errorf("trace: allocate %s of %d bytes: %w", typ, size, ErrTooLarge)
	}
	total := PrefixSize + size
	if !buf.Fits(seg.write, total, seg.end) {
		return nil, &SpaceError{Type: typ, Need: total, Free: seg.Remaining()}
	}
	ts, err := seg.src.Ticks()
	if err != nil {
		return nil, fmt.Errorf("trace: allocate %s: %w", typ, err)
	}
	off := seg.commit(typ, size, ts)
	return seg.buf[off : off+size : off+size], nil
}

// commit writes the prefix at the cursor, advances it, and charges the
// record to the header. All checks have already passed. It returns the
// payload offset.
func (s *Segment) commit(typ RecordType, size int, ts uint64) int {
	total := PrefixSize + size
	format.PutPrefix(s.buf[s.write:], format.NewPrefix(typ, uint32(size), ts))
	off := s.write + PrefixSize
	s.write += total
	format.AddSegmentLength(s.buf[s.header:], uint32(total))
	return off
}
