package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/joshuapare/calltrace/trace"
)

// FileMagic opens every segment file.
var FileMagic = []byte("CALLTRC1")

// ErrBadFile indicates a segment file with a bad magic or a torn frame.
var ErrBadFile = errors.New("sink: malformed segment file")

// File appends zstd-compressed segments to a local file.
type File struct {
	mu     sync.Mutex
	o      options
	f      *os.File
	enc    *zstd.Encoder
	scr    []byte
	closed bool
}

// OpenFile opens or creates the segment file at path for appending.
func OpenFile(path string, opts ...Option) (*File, error) {
	o := buildOptions(opts)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	if err := checkOrWriteMagic(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: %s: %w", path, err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return nil, err
	}
	o.logger.Info("segment file opened", "path", path)
	return &File{o: o, f: f, enc: enc}, nil
}

func checkOrWriteMagic(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		_, err := f.Write(FileMagic)
		return err
	}
	got := make([]byte, len(FileMagic))
	if _, err := f.ReadAt(got, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrBadFile, err)
	}
	if !bytes.Equal(got, FileMagic) {
		return fmt.Errorf("%w: magic %q", ErrBadFile, got)
	}
	return nil
}

func (s *File) Consume(ctx context.Context, h Handoff) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.o.verify {
		if _, err := trace.Verify(h.Data); err != nil {
			return fmt.Errorf("sink: segment %d: %w", h.Sequence, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.scr = appendFrame(s.enc, s.scr[:0], h)
	compressed := len(s.scr) - frameHeaderSize

	if _, err := s.f.Write(s.scr); err != nil {
		s.o.logger.Error("segment write failed", "seq", h.Sequence, "err", err)
		return fmt.Errorf("sink: write segment %d: %w", h.Sequence, err)
	}
	s.o.logger.Debug("segment written",
		"seq", h.Sequence, "thread", h.ThreadID, "raw", len(h.Data), "compressed", compressed)
	return nil
}

// Sync flushes the file to stable storage.
func (s *File) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.f.Sync()
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	encErr := s.enc.Close()
	syncErr := s.f.Sync()
	closeErr := s.f.Close()
	return errors.Join(encErr, syncErr, closeErr)
}

// ReadFile replays every segment stored in the file at path through fn, in
// write order. The Data passed to fn is only valid during the call.
func ReadFile(path string, fn func(Handoff) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReadFrames(f, fn)
}

// ReadFrames is ReadFile over an arbitrary reader.
func ReadFrames(r io.Reader, fn func(Handoff) error) error {
	magic := make([]byte, len(FileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("%w: %w", ErrBadFile, err)
	}
	if !bytes.Equal(magic, FileMagic) {
		return fmt.Errorf("%w: magic %q", ErrBadFile, magic)
	}
	fr, err := newFrameReader()
	if err != nil {
		return err
	}
	defer fr.close()
	for {
		h, err := fr.next(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(h); err != nil {
			return err
		}
	}
}

var _ Sink = (*File)(nil)
