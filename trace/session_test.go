package trace

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/calltrace/internal/osthread"
	"github.com/joshuapare/calltrace/trace/clock"
)

func TestNewSessionDefaults(t *testing.T) {
	sess, err := NewSession()
	require.NoError(t, err)
	assert.Equal(t, DefaultProtocol, sess.Protocol())
	assert.Equal(t, DefaultEndpoint, sess.Endpoint())
	assert.NotZero(t, sess.Calibration().Frequency)
	require.NotNil(t, sess.Clock())

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	assert.Equal(t, osthread.CurrentID(), sess.ThreadID())
}

func TestNewSessionRejectsUncalibratedClock(t *testing.T) {
	_, err := NewSession(WithClock(clock.NewManual(0, 0, 1), clock.Calibration{}))
	require.ErrorIs(t, err, clock.ErrCounterUnavailable)
}

func TestSessionTransportUTF16(t *testing.T) {
	sess, _ := newTestSession(t)
	sess2, err := NewSession(WithClock(sess.Clock(), sess.Calibration()), WithTransport("tcp", "collector:9000"))
	require.NoError(t, err)

	proto, ep, err := sess2.TransportUTF16()
	require.NoError(t, err)
	assert.Equal(t, []byte{'t', 0, 'c', 0, 'p', 0}, proto)
	assert.Len(t, ep, 2*len("collector:9000"))
}

func TestBootstrapUsesCallingThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	src := clock.NewManual(0, testHz, 1)
	sess, err := NewSession(WithClock(src, clock.Calibration{Frequency: testHz}))
	require.NoError(t, err)
	seg, err := NewSegment(make([]byte, 64))
	require.NoError(t, err)
	require.NoError(t, WriteSegmentHeader(sess, seg))

	h, err := seg.Header()
	require.NoError(t, err)
	assert.Equal(t, osthread.CurrentID(), h.ThreadID)
}
