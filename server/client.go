package server

import (
	"io"
	"net"
	"sync"

	"github.com/pankaj/minechat/logger"
)

const outboxSize = 256

// ConnectedClient represents a single listener connection.
type ConnectedClient struct {
	conn   net.Conn
	outbox chan string
	done   chan struct{}
	kick   chan struct{}

	stopOnce sync.Once
	kickOnce sync.Once
}

func newConnectedClient(conn net.Conn) *ConnectedClient {
	return &ConnectedClient{
		conn:   conn,
		outbox: make(chan string, outboxSize),
		done:   make(chan struct{}),
		kick:   make(chan struct{}),
	}
}

// Send enqueues data to the client's outbox. Non-blocking: drops the data
// if the buffer is full (protects against slow clients).
func (c *ConnectedClient) Send(data string) {
	select {
	case c.outbox <- data:
	default:
		logger.Warn("Dropping message for slow listener", "remote", c.conn.RemoteAddr())
	}
}

// Kick asks the writer to flush the outbox and close the connection.
func (c *ConnectedClient) Kick() {
	c.kickOnce.Do(func() { close(c.kick) })
}

func (c *ConnectedClient) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// readLoop discards anything the listener sends and returns once the
// connection is closed from either side.
func (c *ConnectedClient) readLoop() {
	io.Copy(io.Discard, c.conn)
}

// writeLoop drains the outbox channel and writes each message to the connection.
func (c *ConnectedClient) writeLoop() {
	for {
		select {
		case msg := <-c.outbox:
			if _, err := io.WriteString(c.conn, msg); err != nil {
				c.conn.Close()
				return
			}
		case <-c.kick:
			c.flush()
			c.conn.Close()
			return
		case <-c.done:
			return
		}
	}
}

// flush writes whatever is still queued without blocking on new sends.
func (c *ConnectedClient) flush() {
	for {
		select {
		case msg := <-c.outbox:
			if _, err := io.WriteString(c.conn, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
