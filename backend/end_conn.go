package backend

import (
	"errors"
	"net"
	"time"

	"github.com/pqinterop/tls-interop-harness/backend/internal/wire"
	"github.com/pqinterop/tls-interop-harness/transport"
)

// endConn presents a transport.End to a TLS stack as a net.Conn.
//
// When the end would block, endConn suspends the running handshake through yield instead of
// returning the error, and retries once resumed. Outside a handshake step (yield is nil), or
// once the step loop has been stopped, it fails with net.ErrClosed rather than suspending.
type endConn struct {
	end      transport.End
	yield    func(StepStatus) bool
	detached bool
	moved    int
	total    int
	// Taps see every byte read from and written to the end, in order.
	inboundTap  func([]byte)
	outboundTap func([]byte)
	// sent records the first plaintext alert the local stack wrote.
	sent wire.AlertObserver
}

type endAddr string

func (a endAddr) Network() string { return "interop" }
func (a endAddr) String() string  { return string(a) }

func newEndConn(end transport.End) *endConn {
	return &endConn{end: end}
}

// suspend hands control back to Step. It returns false if the connection is being closed.
func (c *endConn) suspend() bool {
	if c.yield == nil || c.detached {
		return false
	}
	status := StepWouldBlock
	if c.moved > 0 {
		status = StepProgressed
	}
	c.moved = 0
	if !c.yield(status) {
		c.detached = true
		return false
	}
	return true
}

func (c *endConn) Read(p []byte) (int, error) {
	for {
		if c.detached {
			return 0, net.ErrClosed
		}
		n, err := c.end.Read(p)
		if n > 0 {
			c.record(n)
			if c.inboundTap != nil {
				c.inboundTap(p[:n])
			}
			return n, nil
		}
		if !errors.Is(err, transport.ErrWouldBlock) {
			return 0, err
		}
		if !c.suspend() {
			return 0, net.ErrClosed
		}
	}
}

func (c *endConn) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		if c.detached {
			return written, net.ErrClosed
		}
		n, err := c.end.Write(p[written:])
		if n > 0 {
			if c.outboundTap != nil {
				c.outboundTap(p[written : written+n])
			}
			c.sent.Observe(p[written : written+n])
			c.record(n)
			written += n
		}
		switch {
		case err == nil:
		case errors.Is(err, transport.ErrWouldBlock):
			if !c.suspend() {
				return written, net.ErrClosed
			}
		default:
			return written, err
		}
	}
	return written, nil
}

func (c *endConn) record(n int) {
	c.moved += n
	c.total += n
}

// takeMoved returns the bytes moved since the last call or suspension.
func (c *endConn) takeMoved() int {
	n := c.moved
	c.moved = 0
	return n
}

func (c *endConn) Close() error {
	c.detached = true
	return c.end.Close()
}

func (c *endConn) LocalAddr() net.Addr  { return endAddr(c.end.Name()) }
func (c *endConn) RemoteAddr() net.Addr { return endAddr("remote-of-" + c.end.Name()) }

func (c *endConn) SetDeadline(time.Time) error      { return nil }
func (c *endConn) SetReadDeadline(time.Time) error  { return nil }
func (c *endConn) SetWriteDeadline(time.Time) error { return nil }
