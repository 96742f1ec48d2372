package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pqinterop/tls-interop-harness/framework/itest"
)

const (
	transportBoth     = "both"
	defaultTransports = transportBoth
)

type commandParams struct {
	configFile     string
	filters        itest.RegexFilters
	skipFile       string
	recordFailures string
	debug          bool
	debugAll       bool
	jUnitFile      string
	transport      string
	backends       []string
	maxRounds      int
	flowCeiling    int

	// names of the flags that were given explicitly, which take precedence over the config file
	setFlags map[string]bool
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.configFile, "config", "", "TOML file with default settings for the run")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select checks to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select checks not to run")
	fs.StringVar(&c.skipFile, "skip-from", "", "file of check IDs, one per line, not to run")
	fs.StringVar(&c.recordFailures, "record-failures", "", "write the IDs of failed checks to this file")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed checks")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all checks")
	fs.StringVar(&c.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	fs.StringVar(&c.transport, "transport", defaultTransports, "transport to run over: memory, socket, or both")
	fs.Var((*stringListFlag)(&c.backends), "backends", "comma-separated backends to use (default all)")
	fs.IntVar(&c.maxRounds, "max-rounds", 0, "maximum handshake rounds per connection pair (default 256)")
	fs.IntVar(&c.flowCeiling, "flow-ceiling", 0, "in-memory transport buffer limit in bytes (default 65536)")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return false
	}
	c.setFlags = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { c.setFlags[f.Name] = true })

	if c.configFile != "" {
		if err := c.applyConfigFile(c.configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
	}
	if _, err := parseTransports(c.transport); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if c.maxRounds < 0 || c.flowCeiling < 0 {
		fmt.Fprintln(os.Stderr, "-max-rounds and -flow-ceiling must not be negative")
		return false
	}
	return true
}
