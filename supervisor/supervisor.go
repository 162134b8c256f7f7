// Package supervisor keeps a listener connected to the chat server: it
// dials, streams lines into history and onto the console, and reconnects
// with exponential backoff until cancelled.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pankaj/minechat/client"
	"github.com/pankaj/minechat/logger"
	"github.com/pankaj/minechat/protocol"
)

// State is the supervisor's position in its connect/stream/backoff cycle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateBackingOff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateBackingOff:
		return "backing off"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// LineSource is one live connection's stream of lines.
type LineSource interface {
	Next(ctx context.Context) (protocol.ChatLine, error)
	Close() error
}

// Dialer opens a new LineSource.
type Dialer interface {
	Dial(ctx context.Context) (LineSource, error)
}

// Store persists received lines. Any Append error is fatal.
type Store interface {
	Append(line protocol.ChatLine) error
}

// Console shows lines and status notices. Its errors are only logged.
type Console interface {
	Print(line protocol.ChatLine) error
	Notice(msg string) error
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithBackoff sets the first reconnect delay and its ceiling.
func WithBackoff(base, max time.Duration) Option {
	return func(s *Supervisor) { s.backoff = NewBackoff(base, max) }
}

// OnState registers a hook called on every state transition. It runs on
// the supervisor's goroutine and must not block.
func OnState(fn func(State)) Option {
	return func(s *Supervisor) { s.onState = fn }
}

// Supervisor drives the listener loop. Run must be called at most once.
type Supervisor struct {
	dialer  Dialer
	store   Store
	console Console
	backoff *Backoff
	log     *log.Logger

	state   atomic.Int32
	onState func(State)
	wait    func(ctx context.Context, d time.Duration) bool
}

// New returns a Supervisor in the idle state.
func New(dialer Dialer, store Store, console Console, opts ...Option) *Supervisor {
	s := &Supervisor{
		dialer:  dialer,
		store:   store,
		console: console,
		backoff: NewBackoff(time.Second, 30*time.Second),
		log:     logger.With("component", "supervisor"),
		wait:    sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state. Safe for concurrent use.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	if State(s.state.Swap(int32(st))) == st {
		return
	}
	s.log.Debug("State changed", "state", st)
	if s.onState != nil {
		s.onState(st)
	}
}

// Run connects and streams until ctx is cancelled, which is a clean stop
// and returns nil. Network failures are retried; a history write failure
// stops the loop and is returned.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.setState(StateStopped)

	for ctx.Err() == nil {
		s.setState(StateConnecting)
		attemptLog := s.log.With("session", uuid.NewString())
		src, err := s.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logConnectFailure(attemptLog, err)
		} else if err := s.stream(ctx, attemptLog, src); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		delay := s.backoff.Next()
		s.setState(StateBackingOff)
		s.log.Info("Reconnecting", "in", delay)
		if !s.wait(ctx, delay) {
			return nil
		}
	}
	return nil
}

// stream pumps one source until it ends. Only storage failures are returned.
func (s *Supervisor) stream(ctx context.Context, sessLog *log.Logger, src LineSource) error {
	defer src.Close()

	s.setState(StateStreaming)
	sessLog.Info("Connected")
	s.notice("Connection established.")

	for {
		line, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			sessLog.Warn("Connection lost", "error", err)
			s.notice("Connection lost, reconnecting...")
			return nil
		}

		if err := s.store.Append(line); err != nil {
			sessLog.Error("Failed to save message", "error", err)
			return fmt.Errorf("saving history: %w", err)
		}
		s.backoff.Reset()

		if err := s.console.Print(line); err != nil {
			sessLog.Warn("Failed to print message", "error", err)
		}
	}
}

func (s *Supervisor) logConnectFailure(attemptLog *log.Logger, err error) {
	var connErr *client.ConnectError
	if errors.As(err, &connErr) {
		attemptLog.Warn("Unable to connect", "addr", connErr.Addr, "reason", connErr.Kind, "error", connErr.Err)
	} else {
		attemptLog.Warn("Unable to connect", "error", err)
	}
	s.notice("Unable to connect to the server.")
}

func (s *Supervisor) notice(msg string) {
	if err := s.console.Notice(msg); err != nil {
		s.log.Warn("Failed to print notice", "error", err)
	}
}

// sleep waits for d unless ctx ends first; it reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
