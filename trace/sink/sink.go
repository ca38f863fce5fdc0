// Package sink holds the consumers a producer hands completed segments to.
// A sink sees a segment only after the producer has stopped writing it, and
// must copy anything it keeps: the bytes are reused once Consume returns.
package sink

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// ErrClosed indicates Consume was called after Close.
var ErrClosed = errors.New("sink: closed")

// Handoff is one completed segment.
type Handoff struct {
	// Sequence numbers the segments of one producer from 1.
	Sequence uint64
	// ThreadID is the producer thread recorded in the segment header.
	ThreadID uint32
	// Data is the consumed portion of the segment, header record first.
	Data []byte
}

// Sink consumes completed segments. Implementations are safe for use by
// several producers at once.
type Sink interface {
	Consume(ctx context.Context, h Handoff) error
	Close() error
}

// Option configures the sinks in this package.
type Option func(*options)

type options struct {
	logger *slog.Logger
	verify bool
}

// WithLogger sets the logger used for flush and error events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithVerify makes the sink reject segments that fail trace.Verify.
func WithVerify(v bool) Option {
	return func(o *options) { o.verify = v }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		verify: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
