package format

import (
	"fmt"

	"github.com/joshuapare/calltrace/internal/buf"
)

// Prefix is the decoded form of the fixed-size frame preceding a payload.
type Prefix struct {
	Timestamp uint64
	Size      uint32
	Type      RecordType
	VersionHi uint8
	VersionLo uint8
}

// NewPrefix returns a prefix stamped with this build's protocol version.
func NewPrefix(typ RecordType, size uint32, timestamp uint64) Prefix {
	return Prefix{
		Timestamp: timestamp,
		Size:      size,
		Type:      typ,
		VersionHi: VersionHi,
		VersionLo: VersionLo,
	}
}

// PutPrefix encodes p into the first PrefixSize bytes of b.
// The caller must ensure len(b) >= PrefixSize.
func PutPrefix(b []byte, p Prefix) {
	PutU64(b, PrefixTimestampOffset, p.Timestamp)
	PutU32(b, PrefixSizeOffset, p.Size)
	PutU16(b, PrefixTypeOffset, uint16(p.Type))
	b[PrefixVersionHiOffset] = p.VersionHi
	b[PrefixVersionLoOffset] = p.VersionLo
}

// ParsePrefix decodes the prefix at the start of b.
func ParsePrefix(b []byte) (Prefix, error) {
	if len(b) < PrefixSize {
		return Prefix{}, fmt.Errorf("prefix: %w", ErrTruncated)
	}
	return Prefix{
		Timestamp: buf.U64LE(b[PrefixTimestampOffset:]),
		Size:      buf.U32LE(b[PrefixSizeOffset:]),
		Type:      RecordType(buf.U16LE(b[PrefixTypeOffset:])),
		VersionHi: b[PrefixVersionHiOffset],
		VersionLo: b[PrefixVersionLoOffset],
	}, nil
}

// Supported reports whether p was written by a compatible protocol major version.
func (p Prefix) Supported() bool {
	return p.VersionHi == VersionHi
}

// RecordSize is the number of segment bytes the framed record occupies.
func (p Prefix) RecordSize() int {
	return PrefixSize + int(p.Size)
}
