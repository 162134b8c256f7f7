package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// ConnectErrorKind classifies why a connection attempt failed.
type ConnectErrorKind int

const (
	ConnectOther ConnectErrorKind = iota
	ConnectTimeout
	ConnectRefused
	ConnectDNSFailure
)

func (k ConnectErrorKind) String() string {
	switch k {
	case ConnectTimeout:
		return "timeout"
	case ConnectRefused:
		return "refused"
	case ConnectDNSFailure:
		return "dns failure"
	default:
		return "other"
	}
}

// ConnectError is returned by Dial. It is always transient from the
// listener's point of view.
type ConnectError struct {
	Kind ConnectErrorKind
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s (%s): %v", e.Addr, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func newConnectError(addr string, err error) *ConnectError {
	var (
		dnsErr *net.DNSError
		netErr net.Error
	)
	kind := ConnectOther
	switch {
	case errors.As(err, &dnsErr):
		kind = ConnectDNSFailure
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = ConnectRefused
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		kind = ConnectTimeout
	}
	return &ConnectError{Kind: kind, Addr: addr, Err: err}
}

// ReadErrorKind classifies how a session's line stream ended.
type ReadErrorKind int

const (
	ReadConnectionReset ReadErrorKind = iota
	ReadTimeout
	ReadClosed
)

func (k ReadErrorKind) String() string {
	switch k {
	case ReadTimeout:
		return "timeout"
	case ReadClosed:
		return "closed"
	default:
		return "connection reset"
	}
}

// ReadError ends a session's line stream.
type ReadError struct {
	Kind ReadErrorKind
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading from server (%s): %v", e.Kind, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func newReadError(err error) *ReadError {
	var netErr net.Error
	kind := ReadConnectionReset
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		kind = ReadClosed
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		kind = ReadTimeout
	}
	return &ReadError{Kind: kind, Err: err}
}
