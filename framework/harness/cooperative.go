package harness

import (
	"github.com/pqinterop/tls-interop-harness/backend"
	"github.com/pqinterop/tls-interop-harness/transport"
)

// runCooperative steps client then server over an in-memory duplex until both are Established,
// one fails, or the pair stops making progress.
func (p *ConnPair) runCooperative() error {
	p.duplex = transport.NewDuplex(p.settings.flowCeiling)

	client, err := backend.Start(p.client.Backend, p.duplex.Local(), p.client.Config, p.settings.logger)
	if err != nil {
		return err
	}
	p.clientConn = client
	server, err := backend.Start(p.server.Backend, p.duplex.Peer(), p.server.Config, p.settings.logger)
	if err != nil {
		return err
	}
	p.serverConn = server

	var prevClient, prevServer backend.StepStatus
	for p.rounds = 1; p.rounds <= p.settings.maxRounds; p.rounds++ {
		cr := client.Step()
		if cr.Status == backend.StepFailed {
			return cr.Err
		}
		sr := server.Step()
		if sr.Status == backend.StepFailed {
			return sr.Err
		}
		if cr.Status == backend.StepEstablished && sr.Status == backend.StepEstablished {
			return nil
		}
		if !advanced(cr.Status, prevClient) && !advanced(sr.Status, prevServer) {
			return stalled("no progress in round %d: client %s, server %s, %d bytes in flight",
				p.rounds, cr, sr, p.duplex.InFlight())
		}
		prevClient, prevServer = cr.Status, sr.Status
	}
	p.rounds = p.settings.maxRounds
	return stalled("not established after %d rounds: client %s, server %s",
		p.settings.maxRounds, client.State(), server.State())
}

// advanced reports whether a step moved bytes or newly reached Established.
func advanced(status, previous backend.StepStatus) bool {
	switch status {
	case backend.StepProgressed:
		return true
	case backend.StepEstablished:
		return previous != backend.StepEstablished
	default:
		return false
	}
}
