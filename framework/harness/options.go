package harness

import (
	"fmt"

	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/framework/helpers"
	"github.com/pqinterop/tls-interop-harness/transport"
)

const (
	// DefaultMaxRounds bounds cooperative driving. A full TLS 1.3 handshake needs fewer than
	// ten rounds.
	DefaultMaxRounds = 256
)

type pairSettings struct {
	transport   transport.Kind
	maxRounds   int
	flowCeiling int
	logger      framework.Logger
}

func defaultPairSettings() pairSettings {
	return pairSettings{
		transport:   transport.KindMemory,
		maxRounds:   DefaultMaxRounds,
		flowCeiling: transport.DefaultFlowCeiling,
	}
}

// PairOption configures a ConnPair.
type PairOption helpers.ConfigOption[pairSettings]

type pairOptionFunc = helpers.ConfigOptionFunc[pairSettings]

func applyPairOptions(s *pairSettings, options []PairOption) error {
	return helpers.ApplyOptions[pairSettings, PairOption](s, options...)
}

// WithTransport selects memory or socket driving.
func WithTransport(kind transport.Kind) PairOption {
	return pairOptionFunc(func(s *pairSettings) error {
		if _, err := transport.ParseKind(string(kind)); err != nil {
			return err
		}
		s.transport = kind
		return nil
	})
}

// WithMaxRounds sets how many rounds cooperative driving may take before the handshake is
// reported as stalled. In socket mode it bounds the number of steps per side.
func WithMaxRounds(n int) PairOption {
	return pairOptionFunc(func(s *pairSettings) error {
		if n <= 0 {
			return fmt.Errorf("max rounds must be positive, got %d", n)
		}
		s.maxRounds = n
		return nil
	})
}

// WithFlowCeiling sets how many bytes the in-memory transport holds in each direction before
// writes would block.
func WithFlowCeiling(n int) PairOption {
	return pairOptionFunc(func(s *pairSettings) error {
		if n <= 0 {
			return fmt.Errorf("flow ceiling must be positive, got %d", n)
		}
		s.flowCeiling = n
		return nil
	})
}

// WithLogger sets the logger for the pair and both of its connections.
func WithLogger(l framework.Logger) PairOption {
	return pairOptionFunc(func(s *pairSettings) error {
		s.logger = l
		return nil
	})
}
