package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	nats "github.com/nats-io/go-nats"

	"github.com/joshuapare/calltrace/trace"
)

// DefaultSubject is the subject segments are published on.
const DefaultSubject = "calltrace.segments"

// Publisher is the part of a NATS connection the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes each segment as one message: a frame header as written by
// File followed by the zstd-compressed segment.
type NATS struct {
	mu      sync.Mutex
	o       options
	pub     Publisher
	conn    *nats.Conn
	subject string
	enc     *zstd.Encoder
	scr     []byte
	closed  bool
}

// NewNATS publishes through pub on subject.
func NewNATS(pub Publisher, subject string, opts ...Option) (*NATS, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{o: buildOptions(opts), pub: pub, subject: subject, enc: enc}, nil
}

// DialNATS connects to the NATS server at url and returns a sink that owns
// the connection.
func DialNATS(url, subject string, opts ...Option) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("calltrace"))
	if err != nil {
		return nil, fmt.Errorf("sink: nats connect %s: %w", url, err)
	}
	s, err := NewNATS(conn, subject, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.conn = conn
	s.o.logger.Info("nats sink connected", "url", url, "subject", s.subject)
	return s, nil
}

func (s *NATS) Consume(ctx context.Context, h Handoff) error {
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

	if err := s.pub.Publish(s.subject, s.scr); err != nil {
		s.o.logger.Error("segment publish failed", "seq", h.Sequence, "err", err)
		return fmt.Errorf("sink: publish segment %d: %w", h.Sequence, err)
	}
	s.o.logger.Debug("segment published", "seq", h.Sequence, "subject", s.subject)
	return nil
}

// Close flushes and closes the connection when the sink dialed it.
func (s *NATS) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.enc.Close()
	if s.conn != nil {
		if ferr := s.conn.FlushTimeout(5 * time.Second); ferr != nil && err == nil {
			err = ferr
		}
		s.conn.Close()
	}
	return err
}

var _ Sink = (*NATS)(nil)
