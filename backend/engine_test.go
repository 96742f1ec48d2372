package backend

import (
	"errors"
	"io"
	"net"
	"testing"

	"github.com/pqinterop/tls-interop-harness/config"
	"github.com/pqinterop/tls-interop-harness/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSession writes its greeting, then reads the peer's greeting.
type scriptedSession struct {
	conn      net.Conn
	send      string
	expect    string
	writeLast bool
	closed    int
}

func (s *scriptedSession) Handshake() error {
	if !s.writeLast {
		if _, err := s.conn.Write([]byte(s.send)); err != nil {
			return err
		}
	}
	buf := make([]byte, len(s.expect))
	if _, err := io.ReadFull(s.conn, buf); err != nil {
		return err
	}
	if string(buf) != s.expect {
		return errors.New("unexpected greeting")
	}
	if s.writeLast {
		if _, err := s.conn.Write([]byte(s.send)); err != nil {
			return err
		}
	}
	return nil
}

func (s *scriptedSession) Close() error {
	s.closed++
	return s.conn.Close()
}

func scriptedEngine(role config.Role, session *scriptedSession, preflight error) *Engine {
	return NewEngine("scripted", role, nil, func(conn net.Conn) (Session, error) {
		session.conn = conn
		return session, nil
	}, preflight)
}

func startedPair(t *testing.T, ceiling int) (*Engine, *scriptedSession, *Engine, *scriptedSession, *transport.Duplex) {
	d := transport.NewDuplex(ceiling)
	cs := &scriptedSession{send: "hello", expect: "world"}
	ss := &scriptedSession{send: "world", expect: "hello", writeLast: true}
	client := scriptedEngine(config.RoleClient, cs, nil)
	server := scriptedEngine(config.RoleServer, ss, nil)
	require.NoError(t, client.Start(d.Local()))
	require.NoError(t, server.Start(d.Peer()))
	return client, cs, server, ss, d
}

func TestEngineStepsCooperatively(t *testing.T) {
	client, _, server, _, _ := startedPair(t, 0)
	assert.Equal(t, StateHandshaking, client.State())

	assert.Equal(t, StepResult{Status: StepProgressed}, client.Step())
	assert.Equal(t, StepResult{Status: StepEstablished}, server.Step())
	assert.Equal(t, StepResult{Status: StepEstablished}, client.Step())

	assert.Equal(t, StateEstablished, client.State())
	assert.Equal(t, 10, client.BytesMoved())
	assert.Equal(t, 2, client.Steps())
}

func TestEngineWouldBlockWithoutProgress(t *testing.T) {
	_, _, server, _, _ := startedPair(t, 0)
	assert.Equal(t, StepResult{Status: StepWouldBlock}, server.Step())
	assert.Equal(t, StepResult{Status: StepWouldBlock}, server.Step())
	assert.Equal(t, StateHandshaking, server.State())
}

func TestEngineFlowCeilingSuspendsWriter(t *testing.T) {
	client, _, server, _, d := startedPair(t, 2)

	assert.Equal(t, StepProgressed, client.Step().Status)
	assert.Equal(t, 2, d.InFlight())
	assert.Equal(t, StepProgressed, server.Step().Status)
	assert.Equal(t, StepProgressed, client.Step().Status)

	var clientResult, serverResult StepResult
	for i := 0; i < 20 && !(clientResult.Terminal() && serverResult.Terminal()); i++ {
		clientResult = client.Step()
		serverResult = server.Step()
	}
	assert.Equal(t, StepEstablished, clientResult.Status)
	assert.Equal(t, StepEstablished, serverResult.Status)
}

func TestEngineTerminalStepIsIdempotent(t *testing.T) {
	client, _, server, _, _ := startedPair(t, 0)
	client.Step()
	server.Step()
	first := client.Step()
	require.Equal(t, StepEstablished, first.Status)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, client.Step())
	}
	assert.Equal(t, 2, client.Steps())
}

func TestEngineFailureIsIdempotent(t *testing.T) {
	d := transport.NewDuplex(0)
	client := scriptedEngine(config.RoleClient, &scriptedSession{send: "hello", expect: "world"}, nil)
	require.NoError(t, client.Start(d.Local()))
	_, _ = d.Peer().Write([]byte("wrong"))

	first := client.Step()
	require.Equal(t, StepFailed, first.Status)
	assert.Equal(t, BackendFault, first.Err.Kind)
	assert.Equal(t, "client", first.Err.Side)
	assert.Equal(t, Kind("scripted"), first.Err.Backend)
	assert.Equal(t, first, client.Step())
	assert.Equal(t, StateFailed, client.State())
}

func TestEnginePreflightFailure(t *testing.T) {
	d := transport.NewDuplex(0)
	client := scriptedEngine(config.RoleClient, &scriptedSession{send: "hello"}, ErrNoExecutableGroup)
	require.NoError(t, client.Start(d.Local()))

	result := client.Step()
	require.Equal(t, StepFailed, result.Status)
	assert.Equal(t, NegotiationFailure, result.Err.Kind)
	assert.ErrorIs(t, result.Err, ErrNegotiationFailure)
	assert.Equal(t, 0, d.InFlight())
}

func TestEngineStepBeforeStart(t *testing.T) {
	e := scriptedEngine(config.RoleClient, &scriptedSession{}, nil)
	result := e.Step()
	assert.Equal(t, StepFailed, result.Status)
	assert.ErrorIs(t, result.Err, ErrNotStarted)
	assert.Equal(t, StateUnstarted, e.State())
	assert.NoError(t, e.Close())
}

func TestEngineStartTwice(t *testing.T) {
	d := transport.NewDuplex(0)
	e := scriptedEngine(config.RoleClient, &scriptedSession{}, nil)
	require.NoError(t, e.Start(d.Local()))
	assert.ErrorIs(t, e.Start(d.Local()), ErrAlreadyStarted)
}

func TestEngineFactoryError(t *testing.T) {
	e := NewEngine("scripted", config.RoleServer, nil, func(net.Conn) (Session, error) {
		return nil, assert.AnError
	}, nil)
	assert.ErrorIs(t, e.Start(transport.NewDuplex(0).Peer()), assert.AnError)
	assert.Equal(t, StateFailed, e.State())
	assert.Equal(t, BackendFault, e.Step().Err.Kind)
}

type panickingSession struct{ conn net.Conn }

func (p *panickingSession) Handshake() error { panic("boom") }
func (p *panickingSession) Close() error     { return p.conn.Close() }

func TestEngineRecoversBackendPanic(t *testing.T) {
	d := transport.NewDuplex(0)
	e := NewEngine("scripted", config.RoleClient, nil, func(conn net.Conn) (Session, error) {
		return &panickingSession{conn: conn}, nil
	}, nil)
	require.NoError(t, e.Start(d.Local()))
	result := e.Step()
	require.Equal(t, StepFailed, result.Status)
	assert.Equal(t, BackendFault, result.Err.Kind)
	assert.Contains(t, result.Err.Error(), "boom")
	assert.NoError(t, e.Close())
}

func TestEngineCloseWhileSuspended(t *testing.T) {
	client, cs, _, _, d := startedPair(t, 0)
	require.Equal(t, StepProgressed, client.Step().Status)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.True(t, client.Closed())
	assert.Equal(t, 1, cs.closed)
	assert.Equal(t, StateFailed, client.State())
	assert.Equal(t, StepFailed, client.Step().Status)

	_, err := d.Local().Read(make([]byte, 1))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestEngineCloseBeforeStart(t *testing.T) {
	e := scriptedEngine(config.RoleClient, &scriptedSession{}, nil)
	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.Start(transport.NewDuplex(0).Local()), transport.ErrClosed)
}

func TestEngineTaps(t *testing.T) {
	d := transport.NewDuplex(0)
	var in, out []byte
	client := scriptedEngine(config.RoleClient, &scriptedSession{send: "hello", expect: "world"}, nil)
	client.SetTaps(func(p []byte) { in = append(in, p...) }, func(p []byte) { out = append(out, p...) })
	require.NoError(t, client.Start(d.Local()))
	_, _ = d.Peer().Write([]byte("world"))
	require.Equal(t, StepEstablished, client.Step().Status)
	assert.Equal(t, "world", string(in))
	assert.Equal(t, "hello", string(out))
}

func TestEngineOnBlockingEnd(t *testing.T) {
	ln, err := transport.ListenLoopback()
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	serverDone := make(chan StepResult, 1)
	go func() {
		end, err := ln.Accept()
		if err != nil {
			serverDone <- StepResult{Status: StepFailed}
			return
		}
		server := scriptedEngine(config.RoleServer, &scriptedSession{send: "world", expect: "hello", writeLast: true}, nil)
		_ = server.Start(end)
		serverDone <- server.Step()
		_ = server.Close()
	}()

	end, err := transport.DialLoopback(ln.Addr())
	require.NoError(t, err)
	client := scriptedEngine(config.RoleClient, &scriptedSession{send: "hello", expect: "world"}, nil)
	require.NoError(t, client.Start(end))
	assert.Equal(t, StepEstablished, client.Step().Status)
	assert.Equal(t, StepEstablished, (<-serverDone).Status)
	assert.NoError(t, client.Close())
}
