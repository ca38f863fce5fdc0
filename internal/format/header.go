package format

import (
	"fmt"

	"github.com/joshuapare/calltrace/internal/buf"
)

// SegmentHeader is the decoded payload of a segment's first record.
type SegmentHeader struct {
	ThreadID        uint32
	SegmentLength   uint32
	TimerResolution uint64
}

// PutSegmentHeader encodes h into the first SegmentHeaderSize bytes of b.
func PutSegmentHeader(b []byte, h SegmentHeader) {
	PutU32(b, HeaderThreadIDOffset, h.ThreadID)
	PutU32(b, HeaderSegmentLengthOffset, h.SegmentLength)
	PutU64(b, HeaderTimerResolutionOffset, h.TimerResolution)
}

// ParseSegmentHeader decodes a header payload.
func ParseSegmentHeader(b []byte) (SegmentHeader, error) {
	if len(b) < SegmentHeaderSize {
		return SegmentHeader{}, fmt.Errorf("segment header: %w", ErrTruncated)
	}
	return SegmentHeader{
		ThreadID:        buf.U32LE(b[HeaderThreadIDOffset:]),
		SegmentLength:   buf.U32LE(b[HeaderSegmentLengthOffset:]),
		TimerResolution: buf.U64LE(b[HeaderTimerResolutionOffset:]),
	}, nil
}

// AddSegmentLength adds delta to the segment_length field of the header
// payload starting at b[0].
func AddSegmentLength(b []byte, delta uint32) {
	PutU32(b, HeaderSegmentLengthOffset, ReadU32(b, HeaderSegmentLengthOffset)+delta)
}
