package trace

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/calltrace/trace/clock"
)

const testHz = 1_000_000

// newTestSession returns a session over a deterministic counter starting at
// 1000 and advancing 3 ticks per read.
func newTestSession(t testing.TB) (*Session, *clock.Manual) {
	t.Helper()
	src := clock.NewManual(1000, testHz, 3)
	cal, err := clock.Calibrate(src)
	require.NoError(t, err)
	sess, err := NewSession(WithClock(src, cal), WithThreadID(4242))
	require.NoError(t, err)
	return sess, src
}

// newBootstrapped returns a bootstrapped segment of the given capacity.
func newBootstrapped(t testing.TB, capacity int) (*Segment, *clock.Manual) {
	t.Helper()
	sess, src := newTestSession(t)
	seg, err := NewSegment(make([]byte, capacity))
	require.NoError(t, err)
	require.NoError(t, WriteSegmentHeader(sess, seg))
	return seg, src
}

type segmentState struct {
	write  int
	header int
	data   []byte
}

func snapshot(seg *Segment) segmentState {
	return segmentState{write: seg.write, header: seg.header, data: bytes.Clone(seg.buf)}
}

func requireUnchanged(t testing.TB, before segmentState, seg *Segment) {
	t.Helper()
	require.Equal(t, before.write, seg.write, "write offset moved")
	require.Equal(t, before.header, seg.header, "header offset moved")
	require.True(t, bytes.Equal(before.data, seg.buf), "buffer bytes changed")
}

// requireAccounted asserts every consumed byte is charged to segment_length.
func requireAccounted(t testing.TB, seg *Segment) {
	t.Helper()
	h, err := seg.Header()
	require.NoError(t, err)
	require.Equal(t, seg.WriteOffset(), int(h.SegmentLength))
}
