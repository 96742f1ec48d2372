package interop

import (
	"fmt"

	"github.com/pqinterop/tls-interop-harness/backend"
	"github.com/pqinterop/tls-interop-harness/provider"
)

// NegativeMatrixServerGroup is the classical group offered by the server in the negative matrix.
const NegativeMatrixServerGroup = "P-256"

// ScenarioSet is a named list of scenarios that are reported together.
type ScenarioSet struct {
	Name      string
	Scenarios []Scenario
}

func pairName(client, server backend.Backend) string {
	return fmt.Sprintf("%s client, %s server", client.Kind(), server.Kind())
}

// GroupMatrix pairs every ordered combination of backends over every group that both of them
// can execute. The client offers only that group and the server offers every group it can
// execute, so the expected group is the one the client asked for. There is one set per group.
func GroupMatrix(ctx *provider.LibContext, registry *Registry) []ScenarioSet {
	groups := provider.AllGroups(ctx)
	var ret []ScenarioSet
	for _, g := range groups {
		set := ScenarioSet{Name: g.Name}
		for _, client := range registry.Backends() {
			if !client.Executes(g) {
				continue
			}
			for _, server := range registry.Backends() {
				if !server.Executes(g) {
					continue
				}
				set.Scenarios = append(set.Scenarios, Scenario{
					Name:   pairName(client, server),
					Client: EndpointSpec{Backend: string(client.Kind()), Groups: []string{g.Name}},
					Server: EndpointSpec{Backend: string(server.Kind()), Groups: executableNames(server, groups)},
					Expect: Succeed(g.Name),
				})
			}
		}
		if len(set.Scenarios) != 0 {
			ret = append(ret, set)
		}
	}
	return ret
}

// NegativeMatrix returns the scenarios that must fail as negotiation failures, never as faults
// or successes. The first sets offer each non-classical group that the client backend cannot
// execute against a server that offers only a classical group; those fail before any bytes are
// sent. They are followed by DisjointMatrix, whose handshakes fail on the wire.
func NegativeMatrix(ctx *provider.LibContext, registry *Registry) []ScenarioSet {
	var ret []ScenarioSet
	for _, g := range provider.AllGroups(ctx) {
		if g.Kind == provider.Classical {
			continue
		}
		set := ScenarioSet{Name: g.Name}
		for _, client := range registry.Backends() {
			if client.Executes(g) {
				continue
			}
			for _, server := range registry.Backends() {
				set.Scenarios = append(set.Scenarios, Scenario{
					Name:   pairName(client, server),
					Client: EndpointSpec{Backend: string(client.Kind()), Groups: []string{g.Name}},
					Server: EndpointSpec{Backend: string(server.Kind()), Groups: []string{NegativeMatrixServerGroup}},
					Expect: FailToNegotiate(),
				})
			}
		}
		if len(set.Scenarios) != 0 {
			ret = append(ret, set)
		}
	}
	return append(ret, DisjointMatrix(ctx, registry)...)
}

// DisjointMatrix pairs every ordered combination of backends where the client offers one group it
// can execute and the server offers every other group it can execute. Both sides are able to
// start, so the missing common group is only discovered by the server when the ClientHello
// arrives. There is one set per client group, named "no overlap with <group>".
func DisjointMatrix(ctx *provider.LibContext, registry *Registry) []ScenarioSet {
	groups := provider.AllGroups(ctx)
	var ret []ScenarioSet
	for _, g := range groups {
		set := ScenarioSet{Name: "no overlap with " + g.Name}
		for _, client := range registry.Backends() {
			if !client.Executes(g) {
				continue
			}
			for _, server := range registry.Backends() {
				var others []string
				for _, name := range executableNames(server, groups) {
					if name != g.Name {
						others = append(others, name)
					}
				}
				if len(others) == 0 {
					continue
				}
				set.Scenarios = append(set.Scenarios, Scenario{
					Name:   pairName(client, server),
					Client: EndpointSpec{Backend: string(client.Kind()), Groups: []string{g.Name}},
					Server: EndpointSpec{Backend: string(server.Kind()), Groups: others},
					Expect: FailToNegotiate(),
				})
			}
		}
		if len(set.Scenarios) != 0 {
			ret = append(ret, set)
		}
	}
	return ret
}

func executableNames(b backend.Backend, groups []provider.Group) []string {
	var ret []string
	for _, g := range groups {
		if b.Executes(g) {
			ret = append(ret, g.Name)
		}
	}
	return ret
}
