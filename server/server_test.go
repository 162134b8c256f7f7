package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

// helper: connect a raw TCP listener and wait until the server has
// registered it.
func connectListener(t *testing.T, srv *ChatServer) (net.Conn, *bufio.Reader) {
	t.Helper()
	before := srv.Clients()
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	waitForClients(t, srv, before+1)
	return conn, bufio.NewReader(conn)
}

func waitForClients(t *testing.T, srv *ChatServer, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for srv.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, srv.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// helper: read one line from a connection with a timeout.
func readLine(t *testing.T, conn net.Conn, r *bufio.Reader, timeout time.Duration) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read line: %v", err)
	}
	conn.SetReadDeadline(time.Time{})
	return line
}

func startServer(t *testing.T) *ChatServer {
	t.Helper()
	srv := New()
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { srv.Shutdown() })
	return srv
}

func TestAddAndRemoveClient(t *testing.T) {
	srv := New()
	c1 := &ConnectedClient{outbox: make(chan string, 1)}
	c2 := &ConnectedClient{outbox: make(chan string, 1)}

	id1 := srv.addClient(c1)
	id2 := srv.addClient(c2)
	if id1 == id2 {
		t.Fatal("client ids should be unique")
	}
	if srv.Clients() != 2 {
		t.Fatalf("expected 2 clients, got %d", srv.Clients())
	}

	srv.removeClient(id1)
	if srv.Clients() != 1 {
		t.Fatalf("expected 1 client, got %d", srv.Clients())
	}
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	srv := New()
	clients := []*ConnectedClient{
		{outbox: make(chan string, 10)},
		{outbox: make(chan string, 10)},
		{outbox: make(chan string, 10)},
	}
	for _, c := range clients {
		srv.addClient(c)
	}

	srv.Publish("hello\n")

	for i, c := range clients {
		select {
		case msg := <-c.outbox:
			if msg != "hello\n" {
				t.Errorf("client %d: expected %q, got %q", i, "hello\n", msg)
			}
		default:
			t.Errorf("client %d should have received the broadcast", i)
		}
	}
}

func TestPublishFlattensEmbeddedNewlines(t *testing.T) {
	srv := New()
	c := &ConnectedClient{outbox: make(chan string, 1)}
	srv.addClient(c)

	srv.Publish("two\nlines")

	if msg := <-c.outbox; msg != "two lines\n" {
		t.Errorf("expected one flattened line, got %q", msg)
	}
}

func TestSendNonBlocking(t *testing.T) {
	srv := startServer(t)
	conn, _ := connectListener(t, srv)

	c := &ConnectedClient{conn: conn, outbox: make(chan string, 1)}
	c.Send("msg1")
	c.Send("msg2") // should not block, msg2 gets dropped

	select {
	case msg := <-c.outbox:
		if msg != "msg1" {
			t.Errorf("expected msg1, got %s", msg)
		}
	default:
		t.Fatal("outbox should have msg1")
	}
}

func TestPublishOverTCP(t *testing.T) {
	srv := startServer(t)
	alice, aliceR := connectListener(t, srv)
	bob, bobR := connectListener(t, srv)

	srv.Publish("hello")
	srv.Publish("world")

	for _, l := range []struct {
		conn net.Conn
		r    *bufio.Reader
	}{{alice, aliceR}, {bob, bobR}} {
		if got := readLine(t, l.conn, l.r, 2*time.Second); got != "hello\n" {
			t.Errorf("expected hello, got %q", got)
		}
		if got := readLine(t, l.conn, l.r, 2*time.Second); got != "world\n" {
			t.Errorf("expected world, got %q", got)
		}
	}
}

func TestDisconnectAllFlushesThenCloses(t *testing.T) {
	srv := startServer(t)
	conn, r := connectListener(t, srv)

	srv.Publish("bye")
	srv.DisconnectAll()

	if got := readLine(t, conn, r, 2*time.Second); got != "bye\n" {
		t.Errorf("expected bye, got %q", got)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := r.ReadString('\n'); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after disconnect, got %v", err)
	}
	waitForClients(t, srv, 0)
}

func TestListenerDisconnectCleanup(t *testing.T) {
	srv := startServer(t)
	conn, _ := connectListener(t, srv)

	conn.Close()
	waitForClients(t, srv, 0)

	// Publishing to nobody is fine.
	srv.Publish("anyone?")
}
