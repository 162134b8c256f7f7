// Package server implements a local minechat-compatible feed: every line
// published on the server is broadcast to all connected listeners.
package server

import (
	"net"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/pankaj/minechat/logger"
)

// ChatServer manages all connected listeners of a single chat feed.
type ChatServer struct {
	listener net.Listener
	mu       sync.RWMutex
	clients  map[uint64]*ConnectedClient
	nextID   uint64
	quit     chan struct{}
	wg       sync.WaitGroup
	log      *log.Logger
}

// New creates a new ChatServer.
func New() *ChatServer {
	return &ChatServer{
		clients: make(map[uint64]*ConnectedClient),
		quit:    make(chan struct{}),
		log:     logger.With("component", "server"),
	}
}

// Listen binds to the given address and starts accepting connections.
func (s *ChatServer) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.wg.Add(1)
	go s.serve()
	return nil
}

// Addr returns the listener's address (useful in tests with ":0" port).
func (s *ChatServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Clients returns the number of connected listeners.
func (s *ChatServer) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Publish broadcasts one message to every connected listener. Embedded
// newlines are flattened so one Publish is always one line on the wire.
func (s *ChatServer) Publish(msg string) {
	msg = strings.ReplaceAll(strings.TrimRight(msg, "\r\n"), "\n", " ")
	s.broadcast(msg + "\n")
}

// PublishRaw writes data to every listener as is, without framing. Together
// with DisconnectAll it reproduces a server dropping a connection mid-line.
func (s *ChatServer) PublishRaw(data string) {
	s.broadcast(data)
}

// DisconnectAll drops every listener connection, as a flaky server would.
// Lines already queued for a listener are flushed before its socket closes.
func (s *ChatServer) DisconnectAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		c.Kick()
	}
}

// Shutdown gracefully stops the server.
func (s *ChatServer) Shutdown() {
	close(s.quit)
	s.listener.Close()

	s.mu.Lock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// serve runs the accept loop.
func (s *ChatServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				s.log.Warn("Accept failed", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection manages a single TCP connection from accept to close.
func (s *ChatServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	client := newConnectedClient(conn)
	id := s.addClient(client)
	s.log.Debug("Listener connected", "id", id, "remote", conn.RemoteAddr())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writeLoop()
	}()
	client.readLoop()

	// readLoop returned: the listener disconnected or was kicked.
	s.removeClient(id)
	client.stop()
	<-writerDone
	s.log.Debug("Listener disconnected", "id", id)
}

// addClient registers a client and returns its id.
func (s *ChatServer) addClient(c *ConnectedClient) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.clients[s.nextID] = c
	return s.nextID
}

// removeClient unregisters a client.
func (s *ChatServer) removeClient(id uint64) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}

// broadcast queues data for all connected clients.
func (s *ChatServer) broadcast(data string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		c.Send(data)
	}
}
