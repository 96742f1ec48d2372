package transport

import (
	"io"
	"sync"
)

// DefaultFlowCeiling is the maximum number of bytes that may wait in an end's inbound buffer.
const DefaultFlowCeiling = 64 * 1024

// Duplex is an in-memory transport with two ends, "local" and "peer". Each end owns an inbound
// buffer; a write by one end appends to the other end's inbound buffer.
type Duplex struct {
	local, peer *memoryEnd
	ceiling     int
	lock        sync.Mutex
}

type memoryEnd struct {
	name    string
	duplex  *Duplex
	other   *memoryEnd
	inbound []byte
	written int
	closed  bool
}

// NewDuplex creates a duplex whose inbound buffers hold at most ceiling bytes. A ceiling of zero
// or less selects DefaultFlowCeiling.
func NewDuplex(ceiling int) *Duplex {
	if ceiling <= 0 {
		ceiling = DefaultFlowCeiling
	}
	d := &Duplex{ceiling: ceiling}
	d.local = &memoryEnd{name: "local", duplex: d}
	d.peer = &memoryEnd{name: "peer", duplex: d}
	d.local.other, d.peer.other = d.peer, d.local
	return d
}

func (d *Duplex) Local() End { return d.local }

func (d *Duplex) Peer() End { return d.peer }

func (d *Duplex) Ceiling() int { return d.ceiling }

// InFlight returns the number of bytes written by either end and not yet read.
func (d *Duplex) InFlight() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.local.inbound) + len(d.peer.inbound)
}

// Closed reports whether both ends have been closed.
func (d *Duplex) Closed() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.local.closed && d.peer.closed
}

func (e *memoryEnd) Name() string { return e.name }

func (e *memoryEnd) Blocking() bool { return false }

func (e *memoryEnd) Read(p []byte) (int, error) {
	e.duplex.lock.Lock()
	defer e.duplex.lock.Unlock()
	switch {
	case e.closed:
		return 0, ErrClosed
	case len(p) == 0:
		return 0, nil
	case len(e.inbound) > 0:
		n := copy(p, e.inbound)
		e.inbound = e.inbound[n:]
		if len(e.inbound) == 0 {
			e.inbound = nil
		}
		return n, nil
	case e.other.closed:
		return 0, io.EOF
	default:
		return 0, ErrWouldBlock
	}
}

func (e *memoryEnd) Write(p []byte) (int, error) {
	e.duplex.lock.Lock()
	defer e.duplex.lock.Unlock()
	if e.closed || e.other.closed {
		return 0, ErrClosed
	}
	space := e.duplex.ceiling - len(e.other.inbound)
	if space <= 0 {
		return 0, ErrWouldBlock
	}
	n := min(space, len(p))
	e.other.inbound = append(e.other.inbound, p[:n]...)
	e.written += n
	if n < len(p) {
		return n, ErrWouldBlock
	}
	return n, nil
}

func (e *memoryEnd) Close() error {
	e.duplex.lock.Lock()
	defer e.duplex.lock.Unlock()
	e.closed = true
	e.inbound = nil
	return nil
}
