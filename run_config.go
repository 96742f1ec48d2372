package main

import (
	"fmt"
	"strings"

	"github.com/pqinterop/tls-interop-harness/transport"

	"github.com/BurntSushi/toml"
)

// fileConfig is the optional TOML run configuration. Command-line flags win over it.
type fileConfig struct {
	Transport   string   `toml:"transport"`
	MaxRounds   int      `toml:"max_rounds"`
	FlowCeiling int      `toml:"flow_ceiling"`
	Backends    []string `toml:"backends"`
	Skip        []string `toml:"skip"`
	JUnit       string   `toml:"junit"`
}

func (c *commandParams) applyConfigFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load run config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		return fmt.Errorf("load run config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("transport") && !c.setFlags["transport"] {
		c.transport = strings.TrimSpace(raw.Transport)
	}
	if meta.IsDefined("max_rounds") && !c.setFlags["max-rounds"] {
		c.maxRounds = raw.MaxRounds
	}
	if meta.IsDefined("flow_ceiling") && !c.setFlags["flow-ceiling"] {
		c.flowCeiling = raw.FlowCeiling
	}
	if meta.IsDefined("backends") && !c.setFlags["backends"] {
		c.backends = nil
		for _, b := range raw.Backends {
			if b = strings.TrimSpace(b); b != "" {
				c.backends = append(c.backends, b)
			}
		}
	}
	if meta.IsDefined("junit") && !c.setFlags["junit"] {
		c.jUnitFile = strings.TrimSpace(raw.JUnit)
	}
	// Skip patterns from the file are added to those on the command line.
	for _, pattern := range raw.Skip {
		if err := c.filters.MustNotMatch.Set(pattern); err != nil {
			return fmt.Errorf("load run config: skip %q: %w", pattern, err)
		}
	}
	return nil
}

func parseTransports(s string) ([]transport.Kind, error) {
	if s == transportBoth {
		return []transport.Kind{transport.KindMemory, transport.KindSocket}, nil
	}
	kind, err := transport.ParseKind(s)
	if err != nil {
		return nil, err
	}
	return []transport.Kind{kind}, nil
}
