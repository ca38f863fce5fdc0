package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrVersionMismatch indicates a prefix carried a version this build cannot decode.
	ErrVersionMismatch = errors.New("format: unsupported record version")
	// ErrNameTooLong indicates a name does not fit its length field.
	ErrNameTooLong = errors.New("format: name too long")
)
