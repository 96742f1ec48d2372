package interop

import (
	"testing"
	"testing/fstest"

	"github.com/pqinterop/tls-interop-harness/backend"
	"github.com/pqinterop/tls-interop-harness/backend/gotls"
	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/framework/itest"
	"github.com/pqinterop/tls-interop-harness/transport"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bothTransports = []transport.Kind{transport.KindMemory, transport.KindSocket} //nolint:gochecknoglobals

func hybridScenario(client, server string) Scenario {
	return Scenario{
		Client: EndpointSpec{Backend: client, Groups: []string{"X25519MLKEM768"}},
		Server: EndpointSpec{Backend: server, Groups: []string{"X25519MLKEM768", "mlkem768"}},
		Expect: Succeed("X25519MLKEM768"),
	}
}

func runScenarios(settings Settings, scenarios ...Scenario) itest.Results {
	return itest.Run(itest.TestConfiguration{}, func(t *itest.T) {
		for _, s := range scenarios {
			RunScenario(t, s, settings)
		}
	})
}

func resultFor(t *testing.T, results itest.Results, id ...string) itest.TestResult {
	for _, r := range results.Tests {
		if r.TestID.String() == itest.TestID(id).String() {
			return r
		}
	}
	require.Fail(t, "no result", "%v", id)
	return itest.TestResult{}
}

func TestHybridScenarioPassesOverBothTransports(t *testing.T) {
	s := hybridScenario("gotls", "utls")
	results := runScenarios(Settings{Transports: bothTransports}, s)
	require.True(t, results.OK(), "%+v", results.Failures)

	for _, kind := range bothTransports {
		r := resultFor(t, results, s.String(), string(kind))
		group, _ := r.Annotation(AnnotationGroup)
		assert.Equal(t, "X25519MLKEM768", group)
		transportName, _ := r.Annotation(AnnotationTransport)
		assert.Equal(t, string(kind), transportName)
		expected, _ := r.Annotation(AnnotationExpected)
		assert.Equal(t, "succeed(X25519MLKEM768)", expected)
	}
	r := resultFor(t, results, s.String(), "transport parity")
	assert.False(t, r.Failed())
}

func TestKyberAgainstClassicalFailsToNegotiate(t *testing.T) {
	s := Scenario{
		Client: EndpointSpec{Backend: "utls", Groups: []string{"p256_kyber512"}},
		Server: EndpointSpec{Backend: "gotls", Groups: []string{"P-256"}},
		Expect: FailToNegotiate(),
	}
	results := runScenarios(Settings{Transports: bothTransports}, s)
	assert.True(t, results.OK(), "%+v", results.Failures)
}

func TestWrongExpectationIsReportedWithoutStoppingTheRun(t *testing.T) {
	wrong := hybridScenario("gotls", "gotls")
	wrong.Name = "wrong"
	wrong.Expect = Succeed("X25519")
	right := hybridScenario("utls", "utls")
	right.Name = "right"

	results := runScenarios(Settings{}, wrong, right)
	assert.False(t, results.OK())
	require.Len(t, results.Failures, 1)
	assert.Equal(t, itest.TestID{"wrong", "memory"}, results.Failures[0].TestID)
	assert.False(t, resultFor(t, results, "right", "memory").Failed())
}

func TestKnownIssueDoesNotFailTheRun(t *testing.T) {
	s := Scenario{
		Name:       "pure mlkem",
		Client:     EndpointSpec{Backend: "gotls", Groups: []string{"mlkem512"}},
		Server:     EndpointSpec{Backend: "utls", Groups: []string{"mlkem512"}},
		Expect:     Succeed("mlkem512"),
		KnownIssue: "not executable",
	}
	results := runScenarios(Settings{Transports: bothTransports}, s)
	assert.True(t, results.OK())
	require.Len(t, results.KnownIssues, 2)
	for _, r := range results.KnownIssues {
		assert.Equal(t, "not executable", r.KnownIssue)
	}
}

func TestInvalidScenarioConfigFails(t *testing.T) {
	s := hybridScenario("gotls", "gotls")
	s.Client.Groups = []string{"not-a-group"}
	results := runScenarios(Settings{}, s)
	require.Len(t, results.Failures, 1)
	assert.Equal(t, itest.TestID{s.String()}, results.Failures[0].TestID)
}

func TestScenarioForUnselectedBackendIsSkipped(t *testing.T) {
	s := hybridScenario("gotls", "utls")
	results := runScenarios(Settings{Registry: NewRegistry(gotls.New())}, s)
	assert.True(t, results.OK())
	assert.Equal(t, []itest.TestID{{s.String()}}, results.Skipped)
}

func TestExecute(t *testing.T) {
	client, server, err := hybridScenario("utls", "gotls").Endpoints(DefaultRegistry())
	require.NoError(t, err)
	var logger framework.CapturingLogger

	for _, kind := range bothTransports {
		result, err := Execute(client, server, kind, nil, &logger)
		require.NoError(t, err)
		assert.NoError(t, result.Err)
		assert.Equal(t, ldvalue.NewOptionalString("X25519MLKEM768"), result.Group)
		assert.Greater(t, result.Rounds, 0)
	}
	assert.NotEmpty(t, logger.Output())
}

func TestCheckParity(t *testing.T) {
	memory, socket := transport.KindMemory, transport.KindSocket
	kinds := []transport.Kind{memory, socket}

	assert.NoError(t, CheckParity(kinds, map[transport.Kind]Observed{
		memory: established("X25519"), socket: {Group: ldvalue.NewOptionalString("X25519"), Rounds: 1},
	}))
	assert.NoError(t, CheckParity(kinds, map[transport.Kind]Observed{
		memory: failedWith(backend.NegotiationFailure), socket: failedWith(backend.NegotiationFailure),
	}))
	assert.Error(t, CheckParity(kinds, map[transport.Kind]Observed{
		memory: established("X25519"), socket: established("P-256"),
	}))
	assert.Error(t, CheckParity(kinds, map[transport.Kind]Observed{
		memory: failedWith(backend.NegotiationFailure), socket: failedWith(backend.BackendFault),
	}))
	assert.NoError(t, CheckParity(kinds[:1], nil))
}

func TestRunSuite(t *testing.T) {
	results := itest.Run(itest.TestConfiguration{}, func(t *itest.T) {
		RunSuite(t, Settings{Transports: bothTransports})
	})
	if !results.OK() {
		for _, f := range results.Failures {
			t.Errorf("%s: %v", f.TestID, f.Errors)
		}
	}

	var ids []string
	for _, r := range results.Tests {
		ids = append(ids, r.TestID.String())
	}
	assert.Contains(t, ids, "group matrix/X25519MLKEM768/gotls client, utls server/socket")
	assert.Contains(t, ids, "negative matrix/p256_kyber512/utls client, gotls server/transport parity")
	assert.Contains(t, ids, "scenario files/peer verification (backend=utls)/untrusted server certificate/memory")
	assert.Contains(t, ids, "negative matrix/no overlap with X25519/gotls client, utls server/socket")
	assert.Contains(t, ids,
		"scenario files/negotiation failures (client=utls,server=gotls)/disjoint classical groups/socket")

	var knownIssueSets []string
	for _, r := range results.KnownIssues {
		require.GreaterOrEqual(t, len(r.TestID), 2)
		knownIssueSets = append(knownIssueSets, r.TestID[1])
	}
	assert.Contains(t, knownIssueSets, "pure ML-KEM (group=mlkem768)")
	assert.Contains(t, knownIssueSets, "group preference (client=gotls,server=gotls)")
	for _, set := range knownIssueSets {
		m.In(t).Assert(set, m.AnyOf(m.StringHasPrefix("pure ML-KEM"), m.StringHasPrefix("group preference")))
	}
}

func TestDisjointGroupsFailOnTheWire(t *testing.T) {
	for _, pair := range [][2]string{{"gotls", "utls"}, {"utls", "gotls"}} {
		s := Scenario{
			Client: EndpointSpec{Backend: pair[0], Groups: []string{"X25519"}},
			Server: EndpointSpec{Backend: pair[1], Groups: []string{"P-256"}},
			Expect: FailToNegotiate(),
		}
		results := runScenarios(Settings{Transports: bothTransports}, s)
		assert.True(t, results.OK(), "%+v", results.Failures)

		client, server, err := s.Endpoints(DefaultRegistry())
		require.NoError(t, err)
		for _, kind := range bothTransports {
			observed, err := Execute(client, server, kind, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, OutcomeNegotiationFailure, observed.Outcome(), "%s over %s: %s", s, kind, observed)
			assert.Greater(t, observed.Rounds, 0)
		}
	}
}

func TestClientGroupOrderIsAKnownIssue(t *testing.T) {
	s := Scenario{
		Name:       "client order",
		Client:     EndpointSpec{Backend: "gotls", Groups: []string{"P-256", "X25519"}},
		Server:     EndpointSpec{Backend: "gotls", Groups: []string{"X25519", "P-256"}},
		Expect:     Succeed("P-256"),
		KnownIssue: "order ignored",
	}
	results := runScenarios(Settings{Transports: bothTransports}, s)
	assert.True(t, results.OK())
	require.Len(t, results.KnownIssues, 2)

	client, server, err := s.Endpoints(DefaultRegistry())
	require.NoError(t, err)
	observed, err := Execute(client, server, transport.KindMemory, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ldvalue.NewOptionalString("X25519"), observed.Group)
}

func TestHelloRetryReachesTheOnlyCommonGroup(t *testing.T) {
	for _, pair := range [][2]string{{"gotls", "utls"}, {"utls", "gotls"}, {"utls", "utls"}} {
		s := Scenario{
			Client: EndpointSpec{Backend: pair[0], Groups: []string{"X25519MLKEM768", "P-384"}},
			Server: EndpointSpec{Backend: pair[1], Groups: []string{"P-384"}},
			Expect: Succeed("P-384"),
		}
		results := runScenarios(Settings{Transports: bothTransports}, s)
		assert.True(t, results.OK(), "%+v", results.Failures)
	}
}

func TestRunSuiteReportsBadScenarioFiles(t *testing.T) {
	fsys := fstest.MapFS{"scenarios/bad.yaml": {Data: []byte("scenarios: [{}]")}}
	results := itest.Run(itest.TestConfiguration{
		Filter: itest.FilterFunc(func(id itest.TestID) bool {
			return len(id) == 0 || id[0] == "scenario files"
		}),
	}, func(t *itest.T) {
		RunSuite(t, Settings{ScenarioFiles: fsys})
	})
	require.Len(t, results.Failures, 1)
	assert.Equal(t, itest.TestID{"scenario files"}, results.Failures[0].TestID)
}
