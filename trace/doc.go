// Package trace implements the in-memory segment format of the call tracer
// and its bounds-checked record allocator.
//
// # Overview
//
// A producer emits a stream of timestamped, typed records into a fixed-size
// Segment. Every record is framed as a 16-byte prefix followed by its
// payload:
//
//	[prefix|segment header] [prefix|payload] [prefix|payload] ...
//
// The prefix carries the payload size, the record type, the protocol version
// and a raw counter timestamp. The first record of every segment is the
// segment header: the owning thread, the counter resolution, and a running
// segment_length that every later allocation increments.
//
// # Allocation
//
// Allocation is a bump pointer: nothing is freed or reordered within a
// segment, and no call allocates heap memory on success.
//
//	seg, _ := trace.NewSegment(make([]byte, 64<<10))
//	if err := trace.WriteSegmentHeader(sess, seg); err != nil {
//	    return err
//	}
//	payload, err := trace.AllocateTraceRecord(seg, trace.TypeThreadName, 4)
//	if err != nil {
//	    return err // segment full: rotate it
//	}
//	copy(payload, "main")
//
// CanAllocate is side-effect free, so a producer can probe sizes before
// deciding to rotate. Every failing call leaves the segment untouched.
//
// # Thread Safety
//
// A Segment is owned by one producer. There are no locks; callers must not
// share an active segment between goroutines. Rotation and handoff live in
// the rotate and sink packages.
package trace
