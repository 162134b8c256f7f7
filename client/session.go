// Package client manages a single listening connection to the chat server.
package client

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pankaj/minechat/protocol"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session owns one TCP connection for its whole lifetime. Next must be
// called from a single goroutine; Close may be called from any goroutine.
type Session struct {
	conn        net.Conn
	reader      *protocol.Reader
	readTimeout time.Duration
	now         func() time.Time

	state atomic.Int32
	err   error // sticky; set once the line stream has ended

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Session.
type Option func(*Session)

// WithReadTimeout ends the session with a timeout ReadError when no data
// arrives for d. Zero disables the idle timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Session) { s.readTimeout = d }
}

// WithClock overrides the source of receipt timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Dial connects to addr within timeout. Failures are returned as
// *ConnectError, or as ctx.Err() when ctx ends first.
func Dial(ctx context.Context, addr string, timeout time.Duration, opts ...Option) (*Session, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newConnectError(addr, err)
	}
	return NewSession(conn, opts...), nil
}

// NewSession wraps an established connection.
func NewSession(conn net.Conn, opts ...Option) *Session {
	s := &Session{
		conn:   conn,
		reader: protocol.NewReader(conn),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(int32(StateOpen))
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Next blocks until the next complete line arrives and returns it.
//
// When the stream ends it returns a *ReadError, or ctx.Err() if ctx was
// cancelled. Once Next has returned an error it keeps returning it: a new
// stream needs a new session.
func (s *Session) Next(ctx context.Context) (protocol.ChatLine, error) {
	if s.err != nil {
		return protocol.ChatLine{}, s.err
	}

	// Cancellation pulls the read deadline to now, which unblocks the read.
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		var deadline time.Time
		if s.readTimeout > 0 {
			deadline = time.Now().Add(s.readTimeout)
		}
		s.conn.SetReadDeadline(deadline)
		// Re-checked after arming so a concurrent cancel cannot be overwritten.
		if err := ctx.Err(); err != nil {
			return protocol.ChatLine{}, s.end(err, StateClosed)
		}

		frame, err := s.reader.ReadFrame()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return protocol.ChatLine{}, s.end(ctxErr, StateClosed)
			}
			readErr := newReadError(err)
			state := StateFailed
			if readErr.Kind == ReadClosed {
				state = StateClosed
			}
			return protocol.ChatLine{}, s.end(readErr, state)
		}

		if line, ok := protocol.Decode(frame, s.now()); ok {
			return line, nil
		}
	}
}

func (s *Session) end(err error, state State) error {
	s.err = err
	s.state.Store(int32(state))
	return err
}

// Close releases the socket. It is safe to call more than once and from
// any goroutine; only the first call closes the connection.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		s.state.CompareAndSwap(int32(StateOpen), int32(StateClosed))
	})
	return s.closeErr
}
