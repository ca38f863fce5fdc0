package format

import (
	"fmt"

	"github.com/joshuapare/calltrace/internal/buf"
)

// Record is one framed record located inside a segment buffer.
type Record struct {
	Offset  int // Offset of the prefix within the scanned buffer
	Prefix  Prefix
	Payload []byte // Alias of the underlying buffer
}

// NextRecord decodes the record whose prefix starts at off and returns it with
// the offset of the following record. Records must end at or before limit;
// a declared size reaching past limit is reported as truncation rather than
// trusted.
func NextRecord(b []byte, off, limit int) (Record, int, error) {
	b = b[:min(max(limit, 0), len(b))]
	if !buf.Has(b, off, PrefixSize) {
		return Record{}, 0, fmt.Errorf("record at %d: %w", off, ErrTruncated)
	}
	p, err := ParsePrefix(b[off:])
	if err != nil {
		return Record{}, 0, fmt.Errorf("record at %d: %w", off, err)
	}
	if !p.Supported() {
		return Record{}, 0, fmt.Errorf("record at %d: version %d.%d: %w",
			off, p.VersionHi, p.VersionLo, ErrVersionMismatch)
	}
	start := off + PrefixSize
	payload, ok := buf.Window(b, start, int(p.Size))
	if !ok {
		return Record{}, 0, fmt.Errorf("record at %d: size %d: %w", off, p.Size, ErrTruncated)
	}
	return Record{
		Offset:  off,
		Prefix:  p,
		Payload: payload,
	}, start + len(payload), nil
}
