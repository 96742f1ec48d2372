package main

import (
	"bufio"
	_ "embed" // this is required in order for go:embed to work
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/framework/itest"
	"github.com/pqinterop/tls-interop-harness/interop"
	"github.com/pqinterop/tls-interop-harness/provider"
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

func main() {
	fmt.Printf("tls-interop-harness v%s\n", strings.TrimSpace(versionString))

	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	logger := framework.NewProcessLogger(os.Stderr, params.debugAll)
	zl := logger.Zerolog()

	// Every handshake depends on the providers, so a registration failure ends the process.
	if err := provider.EnsureLoaded(); err != nil {
		zl.Fatal().Err(err).Msg("provider registration failed")
	}
	for _, g := range provider.AllGroups(nil) {
		zl.Debug().Str("group", g.Name).Str("provider", g.Provider).Str("kind", g.Kind.String()).
			Msg("group available")
	}

	results, err := run(params, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !results.OK() {
		os.Exit(1)
	}
}

func run(params commandParams, logger framework.ProcessLogger) (*itest.Results, error) {
	if params.skipFile != "" {
		if err := loadSuppressions(&params); err != nil {
			return nil, err
		}
	}

	registry, err := interop.DefaultRegistry().Select(params.backends)
	if err != nil {
		return nil, err
	}
	transports, err := parseTransports(params.transport)
	if err != nil {
		return nil, err
	}

	zl := logger.Zerolog()
	zl.Info().
		Strs("backends", registry.Names()).
		Str("transport", params.transport).
		Msg("starting interop run")

	itest.PrintFilterDescription(os.Stdout, params.filters, nil, registry.Capabilities())

	var testLogger itest.TestLogger
	consoleLogger := itest.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	var jUnitLogger *itest.JUnitTestLogger
	if params.jUnitFile == "" {
		testLogger = consoleLogger
	} else {
		properties := map[string]string{
			"version":   strings.TrimSpace(versionString),
			"backends":  strings.Join(registry.Names(), ","),
			"transport": params.transport,
		}
		if params.maxRounds > 0 {
			properties["maxRounds"] = strconv.Itoa(params.maxRounds)
		}
		if params.flowCeiling > 0 {
			properties["flowCeiling"] = strconv.Itoa(params.flowCeiling)
		}
		jUnitLogger = itest.NewJUnitTestLogger(params.jUnitFile, properties, params.filters)
		testLogger = itest.MultiTestLogger{consoleLogger, jUnitLogger}
	}

	settings := interop.Settings{
		Registry:    registry,
		Transports:  transports,
		MaxRounds:   params.maxRounds,
		FlowCeiling: params.flowCeiling,
		Logger:      logger,
	}
	config := itest.TestConfiguration{
		Filter:       params.filters,
		TestLogger:   testLogger,
		Capabilities: registry.Capabilities(),
	}
	results := itest.Run(config, func(t *itest.T) {
		interop.RunSuite(t, settings)
	})

	fmt.Println()
	itest.PrintResults(os.Stdout, results)

	if jUnitLogger != nil {
		if err := jUnitLogger.EndLog(results); err != nil {
			return nil, fmt.Errorf("error writing log: %w", err)
		}
	}

	if params.recordFailures != "" {
		f, err := os.Create(params.recordFailures)
		if err != nil {
			return nil, fmt.Errorf("cannot create suppression file: %w", err)
		}
		for _, test := range results.Failures {
			fmt.Fprintln(f, test.TestID)
		}
		_ = f.Close()
	}

	return &results, nil
}

func loadSuppressions(params *commandParams) error {
	file, err := os.Open(params.skipFile)
	if err != nil {
		return fmt.Errorf("cannot open provided suppression file: %w", err)
	}
	defer func() { _ = file.Close() }()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// Ignore blank lines
		if strings.TrimSpace(line) == "" {
			continue
		}
		escaped := regexp.QuoteMeta(line)
		if err := params.filters.MustNotMatch.Set(escaped); err != nil {
			return fmt.Errorf("cannot parse suppression: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("while processing suppression file: %w", err)
	}
	return nil
}
