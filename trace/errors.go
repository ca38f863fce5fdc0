package trace

import (
	"errors"
	"fmt"
)

// Contract violations. Each one means the calling layer sized or rotated a
// segment incorrectly; the operation is refused and the segment is left
// exactly as it was.
var (
	// ErrNilSegment indicates a nil *Segment was passed.
	ErrNilSegment = errors.New("trace: nil segment")

	// ErrNilSession indicates a nil *Session was passed to bootstrap.
	ErrNilSession = errors.New("trace: nil session")

	// ErrNoStorage indicates the segment has no backing buffer.
	ErrNoStorage = errors.New("trace: segment has no backing storage")

	// ErrZeroLength indicates a capacity check for zero or fewer bytes.
	ErrZeroLength = errors.New("trace: allocation length must be positive")

	// ErrNotBootstrapped indicates a record allocation on a segment whose
	// header has not been written.
	ErrNotBootstrapped = errors.New("trace: segment header not written")

	// ErrAlreadyBootstrapped indicates a second bootstrap of the same segment.
	ErrAlreadyBootstrapped = errors.New("trace: segment header already written")

	// ErrInsufficientSpace indicates the segment cannot hold the framed record.
	ErrInsufficientSpace = errors.New("trace: insufficient segment space")

	// ErrEmptyPayload indicates a zero-size allocation for a record type that
	// defines a payload.
	ErrEmptyPayload = errors.New("trace: empty payload for record type")

	// ErrTooLarge indicates a size that does not fit the 32-bit wire fields.
	ErrTooLarge = errors.New("trace: size exceeds 32-bit limit")

	// ErrReservedType indicates a caller tried to allocate the segment header type.
	ErrReservedType = errors.New("trace: record type is reserved")

	// ErrWrongType indicates a typed appender was given a type it cannot encode.
	ErrWrongType = errors.New("trace: record type does not match payload")

	// ErrHeaderMisplaced indicates bootstrap found its header somewhere other
	// than where the allocator placed it.
	ErrHeaderMisplaced = errors.New("trace: header not at allocated payload")
)

// ErrCorruptSegment indicates a completed segment failed verification.
var ErrCorruptSegment = errors.New("trace: corrupt segment")

// SpaceError reports a record that did not fit the free space of a segment.
// It matches ErrInsufficientSpace under errors.Is.
type SpaceError struct {
	Type RecordType // Record that was refused
	Need int        // Bytes the framed record needs, prefix included
	Free int        // Bytes left in the segment
}

func (e *SpaceError) Error() string {
	return fmt.Sprintf("trace: %s needs %d bytes, %d free: %v", e.Type, e.Need, e.Free, ErrInsufficientSpace)
}

func (e *SpaceError) Unwrap() error { return ErrInsufficientSpace }
