package harness

import (
	"fmt"

	"github.com/pqinterop/tls-interop-harness/backend"
	"github.com/pqinterop/tls-interop-harness/transport"
)

type serverOutcome struct {
	conn   backend.Connection
	result backend.StepResult
	err    error
}

// runSocket runs the server handshake on its own goroutine and the client handshake on the
// caller, then joins the server before looking at either result.
func (p *ConnPair) runSocket() error {
	ln, err := transport.ListenLoopback()
	if err != nil {
		return fmt.Errorf("listening on loopback: %w", err)
	}
	p.listener = ln

	done := make(chan serverOutcome, 1)
	go p.serve(ln, done)

	end, err := transport.DialLoopback(ln.Addr())
	if err != nil {
		// Unblocks Accept so the join below cannot hang.
		_ = ln.Close()
		p.join(done)
		return fmt.Errorf("connecting to loopback listener: %w", err)
	}
	client, err := backend.Start(p.client.Backend, end, p.client.Config, p.settings.logger)
	if err != nil {
		_ = end.Close()
		p.join(done)
		return err
	}
	p.clientConn = client

	cr := p.drive(client)
	if cr.Status == backend.StepFailed {
		// The server may be waiting for a flight that will never come; EOF ends its handshake.
		_ = client.Close()
	}
	so := p.join(done)
	if s, ok := client.(interface{ Steps() int }); ok {
		p.rounds = s.Steps()
	}

	switch {
	case so.err != nil:
		if cr.Status == backend.StepFailed {
			return cr.Err
		}
		return so.err
	case cr.Status == backend.StepFailed && so.result.Status == backend.StepFailed:
		return primaryFailure(cr.Err, so.result.Err)
	case cr.Status == backend.StepFailed:
		return cr.Err
	case so.result.Status == backend.StepFailed:
		return so.result.Err
	}
	return nil
}

func (p *ConnPair) serve(ln *transport.Listener, done chan<- serverOutcome) {
	end, err := ln.Accept()
	if err != nil {
		done <- serverOutcome{err: fmt.Errorf("accepting loopback connection: %w", err)}
		return
	}
	conn, err := backend.Start(p.server.Backend, end, p.server.Config, p.settings.logger)
	if err != nil {
		_ = end.Close()
		done <- serverOutcome{err: err}
		return
	}
	result := p.drive(conn)
	if result.Status == backend.StepFailed {
		// Same as for the client: the peer sees EOF instead of waiting for a reply.
		_ = conn.Close()
	}
	done <- serverOutcome{conn: conn, result: result}
}

func (p *ConnPair) join(done <-chan serverOutcome) serverOutcome {
	so := <-done
	p.serverConn = so.conn
	return so
}

// drive steps one connection until it reaches a terminal state. Over a blocking end the first
// step normally runs the whole handshake.
func (p *ConnPair) drive(c backend.Connection) backend.StepResult {
	for i := 0; i < p.settings.maxRounds; i++ {
		if r := c.Step(); r.Terminal() {
			return r
		}
	}
	return backend.StepResult{
		Status: backend.StepFailed,
		Err:    stalled("%s not established after %d steps", c.Role(), p.settings.maxRounds),
	}
}

// primaryFailure picks which side's error explains a handshake that failed on both sides. The
// side that detected the problem wins over the side that was told about it by an alert or a
// hang-up; failing that, a specific failure wins over a BackendFault.
func primaryFailure(client, server *backend.HandshakeError) *backend.HandshakeError {
	clientPeer, serverPeer := backend.IsPeerReported(client), backend.IsPeerReported(server)
	switch {
	case clientPeer && !serverPeer:
		return server
	case serverPeer && !clientPeer:
		return client
	case client.Kind == backend.BackendFault && server.Kind != backend.BackendFault:
		return server
	}
	return client
}
