package trace

import (
	"testing"
)

// BenchmarkAllocateTraceRecord measures the hot path: one framed record per
// call, resetting the segment whenever it fills.
func BenchmarkAllocateTraceRecord(b *testing.B) {
	sess, _ := newTestSession(b)
	seg, err := NewSegment(make([]byte, 64<<10))
	if err != nil {
		b.Fatal(err)
	}
	if err := WriteSegmentHeader(sess, seg); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := range b.N {
		size := 8 + (i%8)*8 // 8-64 bytes
		if ok, _ := CanAllocate(seg, PrefixSize+size); !ok {
			seg.Reset()
			if err := WriteSegmentHeader(sess, seg); err != nil {
				b.Fatal(err)
			}
		}
		if _, err := AllocateTraceRecord(seg, TypeThreadName, size); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAppendEnterEvent measures a typed append including payload encoding.
func BenchmarkAppendEnterEvent(b *testing.B) {
	sess, _ := newTestSession(b)
	seg, err := NewSegment(make([]byte, 64<<10))
	if err != nil {
		b.Fatal(err)
	}
	if err := WriteSegmentHeader(sess, seg); err != nil {
		b.Fatal(err)
	}
	ev := Event{Depth: 3, Return: 0x401008, Function: 0x401000}

	b.ResetTimer()
	b.ReportAllocs()

	for range b.N {
		if seg.Remaining() < PrefixSize+0x38 {
			seg.Reset()
			if err := WriteSegmentHeader(sess, seg); err != nil {
				b.Fatal(err)
			}
		}
		if err := AppendEnterEvent(seg, ev); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCanAllocate measures the side-effect-free capacity probe.
func BenchmarkCanAllocate(b *testing.B) {
	seg, _ := newBootstrapped(b, 4096)

	b.ResetTimer()
	b.ReportAllocs()

	for i := range b.N {
		if _, err := CanAllocate(seg, 1+i%8192); err != nil {
			b.Fatal(err)
		}
	}
}
