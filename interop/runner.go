// Package interop runs handshake scenarios between TLS backends and checks their outcomes.
//
// Scenarios come from three places: the group matrix, which pairs every backend with every other
// over each group they can both execute; the negative matrix, which offers groups a backend
// cannot execute against a classical server; and scenario files embedded in the data package.
// Every scenario runs once per selected transport, and when more than one transport is selected
// their results must agree.
package interop

import (
	"fmt"
	"io/fs"

	"github.com/pqinterop/tls-interop-harness/data"
	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/framework/harness"
	"github.com/pqinterop/tls-interop-harness/framework/itest"
	"github.com/pqinterop/tls-interop-harness/provider"
	"github.com/pqinterop/tls-interop-harness/transport"

	"github.com/stretchr/testify/require"
)

// Annotation keys attached to each transport-level result.
const (
	AnnotationClient    = "client"
	AnnotationServer    = "server"
	AnnotationTransport = "transport"
	AnnotationExpected  = "expected"
	AnnotationGroup     = "group"
	AnnotationRounds    = "rounds"
)

// Settings control a suite run.
type Settings struct {
	Registry   *Registry
	Transports []transport.Kind

	// MaxRounds and FlowCeiling override the ConnPair defaults when positive.
	MaxRounds   int
	FlowCeiling int

	// ScenarioFiles is searched for ScenarioDir. If nil, the embedded data files are used.
	ScenarioFiles fs.FS

	// LibContext is the provider context the matrices are generated from; nil means the global one.
	LibContext *provider.LibContext

	// Logger receives one line per handshake, in addition to each scope's debug output.
	Logger framework.Logger
}

func (s Settings) registry() *Registry {
	if s.Registry == nil {
		return DefaultRegistry()
	}
	return s.Registry
}

func (s Settings) transports() []transport.Kind {
	if len(s.Transports) == 0 {
		return []transport.Kind{transport.KindMemory}
	}
	return s.Transports
}

func (s Settings) pairOptions() []harness.PairOption {
	var opts []harness.PairOption
	if s.MaxRounds > 0 {
		opts = append(opts, harness.WithMaxRounds(s.MaxRounds))
	}
	if s.FlowCeiling > 0 {
		opts = append(opts, harness.WithFlowCeiling(s.FlowCeiling))
	}
	return opts
}

// RunSuite runs the group matrix, the negative matrix, and every scenario file.
func RunSuite(t *itest.T, settings Settings) {
	registry := settings.registry()
	t.Run("group matrix", func(t *itest.T) {
		RunScenarioSets(t, GroupMatrix(settings.LibContext, registry), settings)
	})
	t.Run("negative matrix", func(t *itest.T) {
		RunScenarioSets(t, NegativeMatrix(settings.LibContext, registry), settings)
	})
	t.Run("scenario files", func(t *itest.T) {
		fsys := settings.ScenarioFiles
		if fsys == nil {
			fsys = data.Embedded()
		}
		sets, err := LoadScenarioSets(fsys, ScenarioDir)
		require.NoError(t, err)
		RunScenarioSets(t, sets, settings)
	})
}

// RunScenarioSets runs each set as a subtest containing one subtest per scenario.
func RunScenarioSets(t *itest.T, sets []ScenarioSet, settings Settings) {
	for _, set := range sets {
		t.Run(set.Name, func(t *itest.T) {
			for _, scenario := range set.Scenarios {
				RunScenario(t, scenario, settings)
			}
		})
	}
}

// RunScenario runs one scenario as a subtest, with a subtest per transport and, when there is
// more than one transport, a parity check.
func RunScenario(t *itest.T, scenario Scenario, settings Settings) {
	t.Run(scenario.String(), func(t *itest.T) {
		markKnownIssue(t, scenario)
		registry := settings.registry()
		for _, name := range []string{scenario.Client.Backend, scenario.Server.Backend} {
			if _, err := registry.Lookup(name); err != nil {
				t.Skipf("backend %q is not selected", name)
			}
		}
		client, server, err := scenario.Endpoints(registry)
		require.NoError(t, err, "scenario configuration is invalid")

		transports := settings.transports()
		observed := make(map[transport.Kind]Observed, len(transports))
		for _, kind := range transports {
			t.Run(string(kind), func(t *itest.T) {
				markKnownIssue(t, scenario)
				t.Annotate(AnnotationClient, scenario.Client.String())
				t.Annotate(AnnotationServer, scenario.Server.String())
				t.Annotate(AnnotationTransport, string(kind))
				t.Annotate(AnnotationExpected, scenario.Expect.String())

				result, err := Execute(client, server, kind, settings.pairOptions(), t.DebugLogger())
				require.NoError(t, err)
				observed[kind] = result
				t.Annotate(AnnotationGroup, result.Group.OrElse(""))
				t.Annotate(AnnotationRounds, fmt.Sprint(result.Rounds))
				t.Debugf("%s over %s: %s", scenario, kind, result)
				framework.OrNull(settings.Logger).Printf("[%s] %s", t.ID(), result)

				if err := scenario.Expect.Check(result); err != nil {
					t.Errorf("%s", err)
				}
			})
		}

		if len(transports) > 1 {
			t.Run("transport parity", func(t *itest.T) {
				markKnownIssue(t, scenario)
				if len(observed) != len(transports) {
					t.Skipf("not every transport produced a result")
				}
				if err := CheckParity(transports, observed); err != nil {
					t.Errorf("%s", err)
				}
			})
		}
	})
}

func markKnownIssue(t *itest.T, scenario Scenario) {
	if scenario.KnownIssue != "" {
		t.KnownIssue(scenario.KnownIssue)
	}
}

// Execute runs one handshake between the two endpoints and releases everything it allocated.
// The returned error is only for problems that prevent the handshake from being attempted, or
// for a failure to release resources; handshake failures are reported in Observed.Err.
func Execute(
	client, server harness.Endpoint,
	kind transport.Kind,
	options []harness.PairOption,
	logger framework.Logger,
) (result Observed, err error) {
	options = append(append([]harness.PairOption(nil), options...),
		harness.WithTransport(kind), harness.WithLogger(logger))
	pair, err := harness.NewConnPair(client, server, options...)
	if err != nil {
		return Observed{}, err
	}
	defer func() {
		if closeErr := pair.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to release connection pair: %w", closeErr)
		}
	}()

	result.Err = pair.Handshake()
	result.Rounds = pair.Rounds()
	if result.Err == nil {
		result.Group, result.Err = pair.NegotiatedGroup()
	}
	return result, nil
}

// CheckParity returns an error if the observations for the given transports differ in outcome
// or negotiated group.
func CheckParity(transports []transport.Kind, observed map[transport.Kind]Observed) error {
	if len(transports) < 2 {
		return nil
	}
	first := observed[transports[0]]
	for _, kind := range transports[1:] {
		other := observed[kind]
		if first.Outcome() != other.Outcome() || first.Group != other.Group {
			return fmt.Errorf("%s and %s disagree: %s (%s) vs %s (%s)",
				transports[0], kind, first.Outcome(), first, other.Outcome(), other)
		}
	}
	return nil
}
