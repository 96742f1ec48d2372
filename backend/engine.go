package backend

import (
	"errors"
	"fmt"
	"iter"
	"net"
	"sync"

	"github.com/pqinterop/tls-interop-harness/config"
	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/transport"

	"github.com/hashicorp/go-multierror"
)

// Session is the part of a backend-native TLS connection the Engine drives.
type Session interface {
	Handshake() error
	Close() error
}

// SessionFactory allocates a backend-native session on top of the connection the Engine
// provides. It must not perform I/O.
type SessionFactory func(conn net.Conn) (Session, error)

// Engine runs a blocking handshake as a coroutine so that it can be advanced one Step at a time.
// Backends embed it and supply a SessionFactory.
//
// On a non-blocking transport end each Step resumes the handshake until it needs bytes that
// have not arrived (or room the peer has not freed), then returns WouldBlock or Progressed. On a
// blocking end the whole handshake runs inside the first Step.
type Engine struct {
	kind      Kind
	role      config.Role
	logger    framework.Logger
	factory   SessionFactory
	preflight error

	state     State
	result    StepResult
	conn      *endConn
	session   Session
	handshake error
	next      func() (StepStatus, bool)
	stop      func()
	steps     int

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// NewEngine creates an Unstarted engine. If preflight is non-nil, the first Step fails with it
// without touching the transport.
func NewEngine(kind Kind, role config.Role, logger framework.Logger, factory SessionFactory, preflight error) *Engine {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Engine{
		kind:      kind,
		role:      role,
		logger:    framework.LoggerWithPrefix(logger, fmt.Sprintf("[%s/%s] ", role, kind)),
		factory:   factory,
		preflight: preflight,
	}
}

func (e *Engine) Kind() Kind { return e.kind }

func (e *Engine) Role() config.Role { return e.role }

func (e *Engine) State() State { return e.state }

// Steps returns how many times Step has resumed the handshake.
func (e *Engine) Steps() int { return e.steps }

// BytesMoved returns the total number of bytes read from and written to the transport end.
func (e *Engine) BytesMoved() int {
	if e.conn == nil {
		return 0
	}
	return e.conn.total
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool { return e.closed }

// SetTaps installs observers for the bytes read from and written to the transport end. It must
// be called before Start.
func (e *Engine) SetTaps(inbound, outbound func([]byte)) {
	e.conn = &endConn{inboundTap: inbound, outboundTap: outbound}
}

func (e *Engine) Start(end transport.End) error {
	switch {
	case e.closed:
		return transport.ErrClosed
	case e.state != StateUnstarted:
		return ErrAlreadyStarted
	}
	if e.conn == nil {
		e.conn = newEndConn(end)
	} else {
		e.conn.end = end
	}
	session, err := e.factory(e.conn)
	if err != nil {
		e.fail(&HandshakeError{Kind: BackendFault, Err: err})
		return err
	}
	e.session = session
	e.next, e.stop = iter.Pull(func(yield func(StepStatus) bool) {
		e.conn.yield = yield
		defer func() { e.conn.yield = nil }()
		e.handshake = session.Handshake()
	})
	e.state = StateHandshaking
	e.logger.Printf("started on %s transport end %q", blockingName(end), end.Name())
	return nil
}

func blockingName(end transport.End) string {
	if end.Blocking() {
		return "blocking"
	}
	return "non-blocking"
}

func (e *Engine) Step() (result StepResult) {
	switch e.state {
	case StateUnstarted:
		return StepResult{Status: StepFailed, Err: e.annotate(&HandshakeError{Kind: BackendFault, Err: ErrNotStarted})}
	case StateEstablished, StateFailed:
		return e.result
	}
	if e.closed {
		return e.fail(&HandshakeError{Kind: BackendFault, Err: transport.ErrClosed})
	}
	if e.preflight != nil {
		e.logger.Printf("failing before first flight: %s", e.preflight)
		return e.fail(Classify(e.preflight))
	}

	defer func() {
		if r := recover(); r != nil {
			result = e.fail(&HandshakeError{Kind: BackendFault, Err: fmt.Errorf("panic during handshake: %v", r)})
		}
	}()

	e.steps++
	status, suspended := e.next()
	if suspended {
		return StepResult{Status: status}
	}
	if e.handshake != nil {
		description, sent := e.conn.sent.Alert()
		he := classifyWithSentAlert(e.handshake, description, sent)
		e.logger.Printf("handshake failed after %d steps: %s", e.steps, e.handshake)
		return e.fail(he)
	}
	e.conn.takeMoved()
	e.state = StateEstablished
	e.result = StepResult{Status: StepEstablished}
	e.logger.Printf("established after %d steps, %d bytes moved", e.steps, e.conn.total)
	return e.result
}

func (e *Engine) fail(he *HandshakeError) StepResult {
	e.state = StateFailed
	e.result = StepResult{Status: StepFailed, Err: e.annotate(he)}
	return e.result
}

func (e *Engine) annotate(he *HandshakeError) *HandshakeError {
	annotated := *he
	if annotated.Side == "" {
		annotated.Side = e.role.String()
		annotated.Backend = e.kind
	}
	return &annotated
}

// Close stops a suspended handshake, closes the session, and closes the transport end. Errors
// that only report that the end was already closed are ignored.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed = true
		var result *multierror.Error
		if e.stop != nil {
			e.stop()
		}
		if e.session != nil {
			if err := e.session.Close(); err != nil && !isClosedError(err) {
				result = multierror.Append(result, fmt.Errorf("closing %s session: %w", e.kind, err))
			}
		}
		if e.conn != nil && e.conn.end != nil {
			if err := e.conn.end.Close(); err != nil && !isClosedError(err) {
				result = multierror.Append(result, fmt.Errorf("closing transport end: %w", err))
			}
		}
		if e.state == StateHandshaking {
			e.fail(&HandshakeError{Kind: BackendFault, Err: transport.ErrClosed})
		}
		e.closeErr = result.ErrorOrNil()
	})
	return e.closeErr
}

func isClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, transport.ErrClosed) ||
		errors.Is(err, transport.ErrWouldBlock)
}
