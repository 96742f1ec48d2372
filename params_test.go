package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pqinterop/tls-interop-harness/framework/itest"
	"github.com/pqinterop/tls-interop-harness/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "run.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadDefaults(t *testing.T) {
	var p commandParams
	require.True(t, p.Read([]string{"harness"}))
	assert.Equal(t, transportBoth, p.transport)
	assert.Empty(t, p.backends)
	assert.Zero(t, p.maxRounds)
	assert.False(t, p.filters.MustMatch.IsDefined())
}

func TestReadFlags(t *testing.T) {
	var p commandParams
	require.True(t, p.Read([]string{"harness", "-transport", "socket", "-backends", "utls, gotls",
		"-run", "group matrix", "-max-rounds", "10", "-debug"}))
	assert.Equal(t, "socket", p.transport)
	assert.Equal(t, []string{"utls", "gotls"}, p.backends)
	assert.Equal(t, 10, p.maxRounds)
	assert.True(t, p.debug)
	assert.True(t, p.filters.Match(itest.TestID{"group matrix", "X25519"}))
	assert.False(t, p.filters.Match(itest.TestID{"scenario files"}))
}

func TestReadRejectsBadTransport(t *testing.T) {
	var p commandParams
	assert.False(t, p.Read([]string{"harness", "-transport", "pigeon"}))
}

func TestConfigFileSuppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
transport = "memory"
max_rounds = 32
flow_ceiling = 128
backends = ["gotls"]
skip = ["negative matrix"]
junit = "out.xml"
`)
	var p commandParams
	require.True(t, p.Read([]string{"harness", "-config", path}))
	assert.Equal(t, "memory", p.transport)
	assert.Equal(t, 32, p.maxRounds)
	assert.Equal(t, 128, p.flowCeiling)
	assert.Equal(t, []string{"gotls"}, p.backends)
	assert.Equal(t, "out.xml", p.jUnitFile)
	assert.False(t, p.filters.Match(itest.TestID{"negative matrix", "mlkem512"}))
}

func TestFlagsWinOverConfigFile(t *testing.T) {
	path := writeConfig(t, `
transport = "memory"
max_rounds = 32
backends = ["gotls"]
skip = ["negative matrix"]
`)
	var p commandParams
	require.True(t, p.Read([]string{"harness", "-config", path, "-transport", "socket", "-max-rounds", "8",
		"-backends", "utls", "-skip", "scenario files"}))
	assert.Equal(t, "socket", p.transport)
	assert.Equal(t, 8, p.maxRounds)
	assert.Equal(t, []string{"utls"}, p.backends)
	assert.False(t, p.filters.Match(itest.TestID{"negative matrix"}))
	assert.False(t, p.filters.Match(itest.TestID{"scenario files"}))
	assert.True(t, p.filters.Match(itest.TestID{"group matrix"}))
}

func TestConfigFileErrors(t *testing.T) {
	for name, content := range map[string]string{
		"malformed":     `transport = `,
		"unknown key":   `transports = "memory"`,
		"bad skip":      `skip = ["("]`,
		"wrong type":    `max_rounds = "many"`,
		"bad transport": `transport = "pigeon"`,
	} {
		t.Run(name, func(t *testing.T) {
			var p commandParams
			assert.False(t, p.Read([]string{"harness", "-config", writeConfig(t, content)}))
		})
	}
}

func TestParseTransports(t *testing.T) {
	kinds, err := parseTransports("both")
	require.NoError(t, err)
	assert.Equal(t, []transport.Kind{transport.KindMemory, transport.KindSocket}, kinds)

	kinds, err = parseTransports("memory")
	require.NoError(t, err)
	assert.Equal(t, []transport.Kind{transport.KindMemory}, kinds)

	_, err = parseTransports("")
	assert.Error(t, err)
}

func TestLoadSuppressions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skip.txt")
	require.NoError(t, os.WriteFile(path, []byte("group matrix/P-256\n\nnegative matrix/mlkem512\n"), 0o600))
	p := commandParams{skipFile: path}
	require.NoError(t, loadSuppressions(&p))
	assert.False(t, p.filters.Match(itest.TestID{"group matrix", "P-256"}))
	assert.True(t, p.filters.Match(itest.TestID{"group matrix", "P-384"}))

	p = commandParams{skipFile: filepath.Join(t.TempDir(), "missing")}
	assert.Error(t, loadSuppressions(&p))
}
