package rotate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/calltrace/trace"
	"github.com/joshuapare/calltrace/trace/clock"
	"github.com/joshuapare/calltrace/trace/sink"
)

func newSession(t *testing.T) (*trace.Session, *clock.Manual) {
	t.Helper()
	src := clock.NewManual(0, 1_000_000, 1)
	sess, err := trace.NewSession(trace.WithClock(src, clock.Calibration{Frequency: 1_000_000}), trace.WithThreadID(5))
	require.NoError(t, err)
	return sess, src
}

func TestProducerRotatesFullSegments(t *testing.T) {
	sess, _ := newSession(t)
	mem := sink.NewMemory()
	// Header (32) plus three 16+16 byte records per segment.
	p, err := New(sess, mem, WithSegmentSize(trace.HeaderRecordSize+3*32))
	require.NoError(t, err)

	ctx := context.Background()
	for range 10 {
		payload, err := p.Allocate(ctx, trace.TypeThreadName, 16)
		require.NoError(t, err)
		copy(payload, "0123456789abcdef")
	}
	require.NoError(t, p.Close(ctx))

	segs := mem.Segments()
	require.Len(t, segs, 4, "3+3+3+1 records")
	total := 0
	for i, s := range segs {
		assert.Equal(t, uint64(i+1), s.Sequence)
		assert.Equal(t, uint32(5), s.ThreadID)
		sum, err := trace.Verify(s.Data)
		require.NoError(t, err)
		total += sum.Records - 1
	}
	assert.Equal(t, 10, total)

	st := p.Stats()
	assert.Equal(t, uint64(10), st.Records)
	assert.Equal(t, uint64(4), st.Segments)
	assert.Equal(t, uint64(3), st.Rotations)
	assert.Zero(t, st.Salvaged)
}

func TestProducerTypedAppend(t *testing.T) {
	sess, _ := newSession(t)
	mem := sink.NewMemory()
	p, err := New(sess, mem, WithSegmentSize(256))
	require.NoError(t, err)

	ctx := context.Background()
	for i := range 20 {
		err := p.Append(ctx, func(seg *trace.Segment) error {
			return trace.AppendEnterEvent(seg, trace.Event{Depth: uint32(i), Function: 0x1000})
		})
		require.NoError(t, err)
	}
	require.NoError(t, p.Close(ctx))

	n := 0
	for _, s := range mem.Segments() {
		for rec, err := range trace.Records(s.Data) {
			require.NoError(t, err)
			if rec.Prefix.Type == trace.TypeEnterEvent {
				n++
			}
		}
	}
	assert.Equal(t, 20, n)
}

func TestProducerRecordTooLarge(t *testing.T) {
	sess, _ := newSession(t)
	mem := sink.NewMemory()
	p, err := New(sess, mem, WithSegmentSize(128))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.Allocate(ctx, trace.TypeThreadName, 128)
	require.ErrorIs(t, err, ErrRecordTooLarge)
	require.ErrorIs(t, err, trace.ErrInsufficientSpace)

	// A part-filled segment is neither handed off nor rotated for a record
	// no segment can hold.
	_, err = p.Allocate(ctx, trace.TypeThreadName, 8)
	require.NoError(t, err)
	before := p.Segment().Len()
	_, err = p.Allocate(ctx, trace.TypeThreadName, 128)
	require.ErrorIs(t, err, ErrRecordTooLarge)
	assert.Empty(t, mem.Segments())
	assert.Zero(t, p.Stats().Rotations)
	assert.Equal(t, before, p.Segment().Len())

	// Typed appenders are held to the same rule.
	err = p.Append(ctx, func(seg *trace.Segment) error {
		return trace.AppendThreadName(seg, strings.Repeat("n", 1000))
	})
	require.ErrorIs(t, err, ErrRecordTooLarge)
	assert.Empty(t, mem.Segments())
	assert.Zero(t, p.Stats().Rotations)

	// A record that fits an empty segment still rotates.
	_, err = p.Allocate(ctx, trace.TypeThreadName, 128-trace.HeaderRecordSize-trace.PrefixSize)
	require.NoError(t, err)
	assert.Len(t, mem.Segments(), 1)
	assert.Equal(t, uint64(1), p.Stats().Rotations)
}

func TestProducerSalvagesOnCounterFault(t *testing.T) {
	sess, src := newSession(t)
	mem := sink.NewMemory()
	p, err := New(sess, mem, WithSegmentSize(1024))
	require.NoError(t, err)
	ctx := context.Background()

	for range 3 {
		_, err := p.Allocate(ctx, trace.TypeThreadName, 4)
		require.NoError(t, err)
	}
	src.Break()
	_, err = p.Allocate(ctx, trace.TypeThreadName, 4)
	require.ErrorIs(t, err, clock.ErrCounterUnavailable)

	segs := mem.Segments()
	require.Len(t, segs, 1, "partial segment is handed off")
	sum, err := trace.Verify(segs[0].Data)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Records)
	assert.Equal(t, uint64(1), p.Stats().Salvaged)
	assert.False(t, p.Segment().Bootstrapped())

	// Bootstrap also needs the counter.
	_, err = p.Allocate(ctx, trace.TypeThreadName, 4)
	require.ErrorIs(t, err, clock.ErrCounterUnavailable)

	src.Repair()
	_, err = p.Allocate(ctx, trace.TypeThreadName, 4)
	require.NoError(t, err)
}

type failingSink struct {
	err   error
	calls int
}

func (f *failingSink) Consume(context.Context, sink.Handoff) error {
	f.calls++
	return f.err
}

func (f *failingSink) Close() error { return nil }

func TestProducerKeepsSegmentWhenSinkFails(t *testing.T) {
	sess, _ := newSession(t)
	boom := errors.New("collector down")
	out := &failingSink{err: boom}
	p, err := New(sess, out, WithSegmentSize(trace.HeaderRecordSize+32))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.Allocate(ctx, trace.TypeThreadName, 16)
	require.NoError(t, err)
	before := p.Segment().Len()

	_, err = p.Allocate(ctx, trace.TypeThreadName, 16)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, p.Segment().Len(), "records survive a failed handoff")
	assert.Equal(t, 1, out.calls)

	out.err = nil
	_, err = p.Allocate(ctx, trace.TypeThreadName, 16)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.Stats().Segments)
}

func TestProducerOptionsValidation(t *testing.T) {
	sess, _ := newSession(t)
	_, err := New(nil, sink.NewMemory())
	require.ErrorIs(t, err, trace.ErrNilSession)
	_, err = New(sess, nil)
	require.Error(t, err)
	_, err = New(sess, sink.NewMemory(), WithSegmentSize(MinSegmentSize-1))
	require.Error(t, err)

	p, err := New(sess, sink.NewMemory(), WithSegmentSize(MinSegmentSize))
	require.NoError(t, err)
	_, err = p.Allocate(context.Background(), trace.TypeProcessEnded, 0)
	require.NoError(t, err)
}

func TestProducerClose(t *testing.T) {
	sess, _ := newSession(t)
	mem := sink.NewMemory()
	p, err := New(sess, mem)
	require.NoError(t, err)
	ctx := context.Background()

	// A header-only segment is not handed off.
	require.NoError(t, p.Flush(ctx))
	assert.Empty(t, mem.Segments())

	_, err = p.Allocate(ctx, trace.TypeThreadName, 4)
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))
	require.NoError(t, p.Close(ctx))
	assert.Len(t, mem.Segments(), 1)

	_, err = p.Allocate(ctx, trace.TypeThreadName, 4)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, p.Flush(ctx), ErrClosed)
}

func TestProducerMappedBacking(t *testing.T) {
	sess, _ := newSession(t)
	path := filepath.Join(t.TempDir(), "active.seg")
	mem := sink.NewMemory()
	p, err := New(sess, mem, WithSegmentSize(4096), WithMappedFile(path))
	require.NoError(t, err)
	ctx := context.Background()

	payload, err := p.Allocate(ctx, trace.TypeThreadName, 4)
	require.NoError(t, err)
	copy(payload, "mmap")

	// The active segment is visible through the file before handoff.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, 4096)
	sum, err := trace.Verify(raw[:p.Segment().Len()])
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Records)

	require.NoError(t, p.Close(ctx))
	require.Len(t, mem.Segments(), 1)
}

func TestProducerAnonymousBacking(t *testing.T) {
	sess, _ := newSession(t)
	mem := sink.NewMemory()
	p, err := New(sess, mem, WithSegmentSize(8192), WithAnonymousMapping())
	require.NoError(t, err)
	ctx := context.Background()
	for range 100 {
		require.NoError(t, p.Append(ctx, func(seg *trace.Segment) error {
			return trace.AppendThreadName(seg, "anon")
		}))
	}
	require.NoError(t, p.Close(ctx))
	assert.NotEmpty(t, mem.Segments())
}
