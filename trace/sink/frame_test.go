package sink

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/calltrace/internal/format"
)

func frameHeader(compressed, raw uint32) []byte {
	hdr := make([]byte, frameHeaderSize)
	format.PutU32(hdr, frameCompressedOffset, compressed)
	format.PutU32(hdr, frameRawOffset, raw)
	format.PutU64(hdr, frameSequenceOffset, 1)
	return hdr
}

func readAll(b []byte) error {
	return ReadFrames(bytes.NewReader(b), func(Handoff) error { return nil })
}

func TestReadFramesHugeClaimedLength(t *testing.T) {
	stream := append(bytes.Clone(FileMagic), frameHeader(1<<30, 1<<30)...)
	stream = append(stream, 1, 2, 3, 4, 5, 6, 7, 8, 9)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	err := readAll(stream)
	runtime.ReadMemStats(&after)

	require.ErrorIs(t, err, ErrBadFile)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20),
		"a short body must not size buffers from the header")
}

func TestReadFramesRejectsImpossibleExpansion(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	stream := append(bytes.Clone(FileMagic), frameHeader(uint32(len(body)), 1<<30)...)
	stream = append(stream, body...)
	require.ErrorIs(t, readAll(stream), ErrBadFile)
}

func TestReadFramesRawLengthMismatch(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()

	seg := testSegment(t, "main")
	frame := appendFrame(enc, nil, Handoff{Sequence: 1, ThreadID: 9, Data: seg})
	format.PutU32(frame, frameRawOffset, uint32(len(seg)+1))
	require.ErrorIs(t, readAll(append(bytes.Clone(FileMagic), frame...)), ErrBadFile)
}

func TestFileAndNATSShareFrames(t *testing.T) {
	seg := testSegment(t, "main", "worker")
	h := Handoff{Sequence: 7, ThreadID: 9, Data: seg}

	path := filepath.Join(t.TempDir(), "trace.bin")
	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Consume(context.Background(), h))
	require.NoError(t, f.Close())
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)

	pub := &fakePublisher{}
	n, err := NewNATS(pub, "")
	require.NoError(t, err)
	require.NoError(t, n.Consume(context.Background(), h))
	require.NoError(t, n.Close())

	require.Len(t, pub.msgs[DefaultSubject], 1)
	assert.Equal(t, onDisk[len(FileMagic):], pub.msgs[DefaultSubject][0])
}
