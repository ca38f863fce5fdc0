package trace

import (
	"fmt"

	"github.com/joshuapare/calltrace/internal/format"
	"github.com/joshuapare/calltrace/internal/osthread"
	"github.com/joshuapare/calltrace/trace/clock"
)

// Session is the identity context a producer bootstraps segments with: the
// calibrated counter, the producer's thread id, and the transport naming the
// external collector uses. A Session is immutable once built and may be
// shared by the segments of one producer.
type Session struct {
	src      clock.Source
	cal      clock.Calibration
	threadID uint32
	fixedTID bool
	protocol string
	endpoint string
}

// Option configures a Session.
type Option func(*Session)

// WithClock uses src for timestamps and cal as the resolution written to
// every segment header. cal must come from calibrating src.
func WithClock(src clock.Source, cal clock.Calibration) Option {
	return func(s *Session) {
		s.src = src
		s.cal = cal
	}
}

// WithThreadID pins the thread id written into segment headers instead of
// reading the calling thread's id at bootstrap.
func WithThreadID(id uint32) Option {
	return func(s *Session) {
		s.threadID = id
		s.fixedTID = true
	}
}

// WithTransport sets the protocol and endpoint names handed to the collector.
func WithTransport(protocol, endpoint string) Option {
	return func(s *Session) {
		s.protocol = protocol
		s.endpoint = endpoint
	}
}

// NewSession builds a Session. Without WithClock it uses the process-wide
// monotonic counter and its one-time calibration.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		protocol: DefaultProtocol,
		endpoint: DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.src == nil {
		cal, err := clock.Process()
		if err != nil {
			return nil, fmt.Errorf("trace: session: %w", err)
		}
		s.src = clock.Monotonic()
		s.cal = cal
	}
	if s.cal.Frequency == 0 {
		return nil, fmt.Errorf("trace: session: uncalibrated clock: %w", clock.ErrCounterUnavailable)
	}
	return s, nil
}

// Calibration returns the counter resolution stamped into segment headers.
func (s *Session) Calibration() clock.Calibration { return s.cal }

// Clock returns the session's tick source.
func (s *Session) Clock() clock.Source { return s.src }

// ThreadID returns the id recorded in segment headers bootstrapped by the
// calling thread.
func (s *Session) ThreadID() uint32 {
	if s.fixedTID {
		return s.threadID
	}
	return osthread.CurrentID()
}

// Protocol returns the transport protocol name.
func (s *Session) Protocol() string { return s.protocol }

// Endpoint returns the collector endpoint name.
func (s *Session) Endpoint() string { return s.endpoint }

// TransportUTF16 returns the protocol and endpoint as UTF-16LE strings for
// transports that take wide-character names.
func (s *Session) TransportUTF16() (protocol, endpoint []byte, err error) {
	if protocol, err = format.EncodeUTF16(s.protocol); err != nil {
		return nil, nil, fmt.Errorf("trace: protocol: %w", err)
	}
	if endpoint, err = format.EncodeUTF16(s.endpoint); err != nil {
		return nil, nil, fmt.Errorf("trace: endpoint: %w", err)
	}
	return protocol, endpoint, nil
}
