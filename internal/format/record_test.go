package format

import (
	"errors"
	"testing"
)

func putRecord(b []byte, off int, typ RecordType, payload []byte) int {
	PutPrefix(b[off:], NewPrefix(typ, uint32(len(payload)), uint64(off)))
	copy(b[off+PrefixSize:], payload)
	return off + PrefixSize + len(payload)
}

func TestNextRecordWalk(t *testing.T) {
	b := make([]byte, 128)
	end := putRecord(b, 0, TypeThreadName, []byte("main"))
	end = putRecord(b, end, TypeProcessEnded, nil)
	end = putRecord(b, end, TypeThreadName, []byte("worker-1"))

	var types []RecordType
	var sizes []uint32
	for off := 0; off < end; {
		rec, next, err := NextRecord(b, off, end)
		if err != nil {
			t.Fatalf("NextRecord(%d): %v", off, err)
		}
		if rec.Offset != off {
			t.Fatalf("Offset = %d, want %d", rec.Offset, off)
		}
		if len(rec.Payload) != int(rec.Prefix.Size) || cap(rec.Payload) != len(rec.Payload) {
			t.Fatalf("payload len/cap = %d/%d, want %d", len(rec.Payload), cap(rec.Payload), rec.Prefix.Size)
		}
		types = append(types, rec.Prefix.Type)
		sizes = append(sizes, rec.Prefix.Size)
		off = next
	}
	if len(types) != 3 || types[0] != TypeThreadName || types[1] != TypeProcessEnded || types[2] != TypeThreadName {
		t.Fatalf("types = %v", types)
	}
	if sizes[0] != 4 || sizes[1] != 0 || sizes[2] != 8 {
		t.Fatalf("sizes = %v", sizes)
	}
}

func TestNextRecordRejectsOversizedDeclaration(t *testing.T) {
	b := make([]byte, 64)
	PutPrefix(b, NewPrefix(TypeThreadName, 1<<31, 0))
	if _, _, err := NextRecord(b, 0, len(b)); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	// The limit bounds the scan even when the buffer is longer.
	PutPrefix(b, NewPrefix(TypeThreadName, 20, 0))
	if _, _, err := NextRecord(b, 0, 32); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated against limit, got %v", err)
	}
}

func TestNextRecordVersionMismatch(t *testing.T) {
	b := make([]byte, PrefixSize)
	p := NewPrefix(TypeProcessEnded, 0, 0)
	p.VersionHi = VersionHi + 1
	PutPrefix(b, p)
	if _, _, err := NextRecord(b, 0, len(b)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestNextRecordBadOffset(t *testing.T) {
	b := make([]byte, 32)
	if _, _, err := NextRecord(b, -1, len(b)); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for negative offset, got %v", err)
	}
	if _, _, err := NextRecord(b, 20, len(b)); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for short tail, got %v", err)
	}
}
