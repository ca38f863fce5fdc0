package sink

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/joshuapare/calltrace/internal/format"
)

// Each segment travels as one frame, in a segment file and as a NATS message:
//
//	Offset  Size  Field
//	0x00    4     Compressed length
//	0x04    4     Raw segment length
//	0x08    8     Sequence
//	0x10    4     Thread id
//	0x14    4     Reserved
//	0x18    ...   zstd-compressed segment bytes
const (
	frameCompressedOffset = 0x00
	frameRawOffset        = 0x04
	frameSequenceOffset   = 0x08
	frameThreadOffset     = 0x10
	frameHeaderSize       = 0x18
)

// maxFrameExpansion bounds the raw length a frame may claim per compressed
// byte: every zstd block costs at least four bytes and decodes to at most
// 128 KiB.
const maxFrameExpansion = (128 << 10) / 4

// appendFrame appends the frame for h to dst.
func appendFrame(enc *zstd.Encoder, dst []byte, h Handoff) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, frameHeaderSize)...)
	dst = enc.EncodeAll(h.Data, dst)
	hdr := dst[start:]
	format.PutU32(hdr, frameCompressedOffset, uint32(len(dst)-start-frameHeaderSize))
	format.PutU32(hdr, frameRawOffset, uint32(len(h.Data)))
	format.PutU64(hdr, frameSequenceOffset, h.Sequence)
	format.PutU32(hdr, frameThreadOffset, h.ThreadID)
	format.PutU32(hdr, frameThreadOffset+4, 0)
	return dst
}

// frameReader decodes consecutive frames. Lengths in a frame header are not
// trusted: the body buffer grows only as bytes arrive, and the raw length must
// be reachable from the bytes actually read and agree with the zstd frame
// header before the decoder sizes its output.
type frameReader struct {
	dec  *zstd.Decoder
	hdr  [frameHeaderSize]byte
	body bytes.Buffer
	raw  []byte
}

func newFrameReader() (*frameReader, error) {
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(format.MaxSegmentSize))
	if err != nil {
		return nil, err
	}
	return &frameReader{dec: dec}, nil
}

// next reads one frame from r. It returns io.EOF only at a clean frame
// boundary. The Data of the returned Handoff is reused by the following call.
func (fr *frameReader) next(r io.Reader) (Handoff, error) {
	if _, err := io.ReadFull(r, fr.hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Handoff{}, io.EOF
		}
		return Handoff{}, fmt.Errorf("%w: frame header: %w", ErrBadFile, err)
	}
	n := format.ReadU32(fr.hdr[:], frameCompressedOffset)
	rawLen := format.ReadU32(fr.hdr[:], frameRawOffset)

	if uint64(rawLen) > uint64(n)*maxFrameExpansion {
		return Handoff{}, fmt.Errorf("%w: %d compressed bytes cannot hold %d raw bytes",
			ErrBadFile, n, rawLen)
	}

	fr.body.Reset()
	if _, err := io.CopyN(&fr.body, r, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Handoff{}, fmt.Errorf("%w: frame body: %w", ErrBadFile, err)
	}

	var zh zstd.Header
	if err := zh.Decode(fr.body.Bytes()); err != nil {
		return Handoff{}, fmt.Errorf("%w: %w", ErrBadFile, err)
	}
	if zh.HasFCS && zh.FrameContentSize != uint64(rawLen) {
		return Handoff{}, fmt.Errorf("%w: frame content %d bytes, header says %d",
			ErrBadFile, zh.FrameContentSize, rawLen)
	}
	raw, err := fr.dec.DecodeAll(fr.body.Bytes(), fr.raw[:0])
	if err != nil {
		return Handoff{}, fmt.Errorf("%w: %w", ErrBadFile, err)
	}
	fr.raw = raw
	if len(raw) != int(rawLen) {
		return Handoff{}, fmt.Errorf("%w: raw length %d, header says %d", ErrBadFile, len(raw), rawLen)
	}
	return Handoff{
		Sequence: format.ReadU64(fr.hdr[:], frameSequenceOffset),
		ThreadID: format.ReadU32(fr.hdr[:], frameThreadOffset),
		Data:     raw,
	}, nil
}

func (fr *frameReader) close() {
	fr.dec.Close()
}
