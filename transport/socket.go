package transport

import (
	"errors"
	"io"
	"net"
	"sync"
)

// Listener accepts loopback TCP connections for the server side of a socket pair.
type Listener struct {
	ln net.Listener
}

// ListenLoopback listens on an ephemeral port on 127.0.0.1.
func ListenLoopback() (*Listener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the host:port that DialLoopback should connect to.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Accept waits for one connection. It returns ErrClosed if the listener is closed while waiting.
func (l *Listener) Accept() (End, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, mapSocketError(err)
	}
	return newSocketEnd("peer", conn), nil
}

// Close stops the listener, unblocking any pending Accept.
func (l *Listener) Close() error {
	if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// DialLoopback connects the client side of a socket pair.
func DialLoopback(addr string) (End, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newSocketEnd("local", conn), nil
}

// socketEnd is a blocking End over a TCP connection.
type socketEnd struct {
	name      string
	conn      net.Conn
	closed    bool
	closeErr  error
	closeOnce sync.Once
	lock      sync.Mutex
}

func newSocketEnd(name string, conn net.Conn) *socketEnd {
	return &socketEnd{name: name, conn: conn}
}

func (e *socketEnd) Name() string { return e.name }

func (e *socketEnd) Blocking() bool { return true }

func (e *socketEnd) isClosed() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.closed
}

func (e *socketEnd) Read(p []byte) (int, error) {
	if e.isClosed() {
		return 0, ErrClosed
	}
	n, err := e.conn.Read(p)
	return n, mapSocketError(err)
}

func (e *socketEnd) Write(p []byte) (int, error) {
	if e.isClosed() {
		return 0, ErrClosed
	}
	n, err := e.conn.Write(p)
	return n, mapSocketError(err)
}

func (e *socketEnd) Close() error {
	e.closeOnce.Do(func() {
		e.lock.Lock()
		e.closed = true
		e.lock.Unlock()
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}

func mapSocketError(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}
