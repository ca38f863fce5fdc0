package trace

import (
	"fmt"
	"iter"

	"github.com/joshuapare/calltrace/internal/format"
)

// Records walks the framed records in data, the consumed bytes of a segment,
// by reading each prefix's size and skipping to the next record. Iteration
// stops after the first error.
func Records(data []byte) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for off := 0; off < len(data); {
			rec, next, err := format.NextRecord(data, off, len(data))
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
			off = next
		}
	}
}

// Records walks the records written to s so far.
func (s *Segment) Records() iter.Seq2[Record, error] {
	return Records(s.Bytes())
}

// Summary describes a verified segment.
type Summary struct {
	Header  SegmentHeader
	Records int // Including the header record
	First   uint64
	Last    uint64
}

// Verify checks that data is a well-formed segment: it starts with exactly
// one header record, segment_length equals len(data), every record frames
// cleanly, and timestamps never decrease. Sinks call it before accepting a
// handed-off segment.
func Verify(data []byte) (Summary, error) {
	var sum Summary
	for rec, err := range Records(data) {
		if err != nil {
			return Summary{}, fmt.Errorf("%w: %w", ErrCorruptSegment, err)
		}
		first := sum.Records == 0
		switch {
		case first && rec.Prefix.Type != TypeSegmentHeader:
			return Summary{}, fmt.Errorf("%w: first record is %s", ErrCorruptSegment, rec.Prefix.Type)
		case !first && rec.Prefix.Type == TypeSegmentHeader:
			return Summary{}, fmt.Errorf("%w: second header at %d", ErrCorruptSegment, rec.Offset)
		case !first && rec.Prefix.Timestamp < sum.Last:
			return Summary{}, fmt.Errorf("%w: timestamp regresses at %d", ErrCorruptSegment, rec.Offset)
		}
		if first {
			h, err := format.ParseSegmentHeader(rec.Payload)
			if err != nil {
				return Summary{}, fmt.Errorf("%w: %w", ErrCorruptSegment, err)
			}
			sum.Header = h
			sum.First = rec.Prefix.Timestamp
		}
		sum.Last = rec.Prefix.Timestamp
		sum.Records++
	}
	if sum.Records == 0 {
		return Summary{}, fmt.Errorf("%w: empty", ErrCorruptSegment)
	}
	if int(sum.Header.SegmentLength) != len(data) {
		return Summary{}, fmt.Errorf("%w: segment_length %d, %d bytes",
			ErrCorruptSegment, sum.Header.SegmentLength, len(data))
	}
	return sum, nil
}
