package itest

import (
	"fmt"
	"io"
	"strings"

	"github.com/pqinterop/tls-interop-harness/framework"

	"github.com/fatih/color"
)

var (
	consoleTestErrorColor   = color.New(color.FgYellow)            //nolint:gochecknoglobals
	consoleTestFailedColor  = color.New(color.FgRed)               //nolint:gochecknoglobals
	consoleKnownIssueColor  = color.New(color.FgMagenta)           //nolint:gochecknoglobals
	consoleTestSkippedColor = color.New(color.Faint, color.FgBlue) //nolint:gochecknoglobals
	consoleDebugOutputColor = color.New(color.Faint)               //nolint:gochecknoglobals
	allTestsPassedColor     = color.New(color.FgGreen)             //nolint:gochecknoglobals
)

// TestLogger receives events as scopes start and finish.
type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput)
	TestSkipped(id TestID, reason string)
}

type nullTestLogger struct{}

func (nullTestLogger) TestStarted(TestID)                                        {}
func (nullTestLogger) TestError(TestID, error)                                   {}
func (nullTestLogger) TestFinished(TestID, TestResult, framework.CapturedOutput) {}
func (nullTestLogger) TestSkipped(TestID, string)                                {}

// MultiTestLogger forwards every event to each of its members in order.
type MultiTestLogger []TestLogger

func (m MultiTestLogger) TestStarted(id TestID) {
	for _, l := range m {
		l.TestStarted(id)
	}
}

func (m MultiTestLogger) TestError(id TestID, err error) {
	for _, l := range m {
		l.TestError(id, err)
	}
}

func (m MultiTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	for _, l := range m {
		l.TestFinished(id, result, debugOutput)
	}
}

func (m MultiTestLogger) TestSkipped(id TestID, reason string) {
	for _, l := range m {
		l.TestSkipped(id, reason)
	}
}

// ConsoleTestLogger prints progress in color. Out defaults to color.Output.
type ConsoleTestLogger struct {
	Out                  io.Writer
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

func (c ConsoleTestLogger) out() io.Writer {
	if c.Out == nil {
		return color.Output
	}
	return c.Out
}

func (c ConsoleTestLogger) TestStarted(id TestID) {
	fmt.Fprintf(c.out(), "[%s]\n", id)
}

func (c ConsoleTestLogger) TestError(_ TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		_, _ = consoleTestErrorColor.Fprintf(c.out(), "  %s\n", line)
	}
}

func (c ConsoleTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	failed := result.Failed()
	if failed {
		_, _ = consoleTestFailedColor.Fprintf(c.out(), "  FAILED: %s\n", id)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		_, _ = consoleDebugOutputColor.Fprintln(c.out(), debugOutput.ToString("    DEBUG "))
	}
}

func (c ConsoleTestLogger) TestSkipped(id TestID, reason string) {
	if reason == "" {
		_, _ = consoleTestSkippedColor.Fprintf(c.out(), "  SKIPPED: %s\n", id)
	} else {
		_, _ = consoleTestSkippedColor.Fprintf(c.out(), "  SKIPPED: %s (%s)\n", id, reason)
	}
}

// PrintResults writes a summary of the run to w.
func PrintResults(w io.Writer, results Results) {
	if len(results.KnownIssues) > 0 {
		_, _ = consoleKnownIssueColor.Fprintf(w, "KNOWN ISSUES (%d):\n", len(results.KnownIssues))
		for _, r := range results.KnownIssues {
			_, _ = consoleKnownIssueColor.Fprintf(w, "  * %s (%s)\n", r.TestID, r.KnownIssue)
		}
	}
	if results.OK() {
		_, _ = allTestsPassedColor.Fprintln(w, "All checks passed")
		return
	}
	_, _ = consoleTestFailedColor.Fprintf(w, "FAILED CHECKS (%d):\n", len(results.Failures))
	for _, f := range results.Failures {
		_, _ = consoleTestFailedColor.Fprintf(w, "  * %s\n", f.TestID)
	}
}
