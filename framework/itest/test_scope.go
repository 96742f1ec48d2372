package itest

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/pqinterop/tls-interop-harness/framework"
)

var errFailedWithoutMessage = errors.New("test failed with no failure message")

type environment struct {
	config  TestConfiguration
	results Results
}

// T is one test scope. It implements the TestingT interfaces of testify's assert and require.
type T struct {
	env         *environment
	id          TestID
	debugLogger framework.CapturingLogger
	annotations []Annotation
	knownIssue  string
	failed      bool
	skipped     bool
	skipReason  string
	cleanups    []func()
	errors      []error
	helperFns   []string
}

// TestConfiguration contains options for the entire run.
type TestConfiguration struct {
	// Filter decides which scopes run, by ID. A nil Filter runs everything.
	Filter Filter

	// TestLogger receives status information about each scope.
	TestLogger TestLogger

	// Context is an application-defined value that tests can retrieve with T.Context.
	Context interface{}

	// Capabilities are checked by T.RequireCapability.
	Capabilities framework.Capabilities
}

// Run executes action as the root scope and returns everything that was recorded.
func Run(config TestConfiguration, action func(*T)) Results {
	if config.TestLogger == nil {
		config.TestLogger = nullTestLogger{}
	}
	env := &environment{config: config}
	t := &T{env: env}
	t.run(action)
	return env.results
}

func (t *T) run(action func(*T)) (result TestResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*T); !ok {
				t.recordError(fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack())))
			} else if t.failed && len(t.errors) == 0 {
				t.recordError(errFailedWithoutMessage)
			}
		}
		for i := len(t.cleanups) - 1; i >= 0; i-- {
			t.cleanups[i]()
		}
		if t.skipped && !t.failed {
			t.env.results.Skipped = append(t.env.results.Skipped, t.id)
			return
		}
		result = TestResult{
			TestID:      t.id,
			Errors:      t.errors,
			Annotations: t.annotations,
			Duration:    time.Since(started),
		}
		if result.Failed() {
			if t.knownIssue == "" {
				t.env.results.Failures = append(t.env.results.Failures, result)
			} else {
				result.KnownIssue = t.knownIssue
				t.env.results.KnownIssues = append(t.env.results.KnownIssues, result)
			}
		}
		t.env.results.Tests = append(t.env.results.Tests, result)
	}()

	action(t)
	return result
}

func (t *T) recordError(err error) {
	t.failed = true
	t.errors = append(t.errors, err)
	t.env.config.TestLogger.TestError(t.id, err)
}

// ID returns the full name of the current scope.
func (t *T) ID() TestID {
	return t.id
}

// Run runs a subtest in its own scope, like testing.T.Run. It returns false if the subtest
// failed.
func (t *T) Run(name string, action func(*T)) bool {
	id := t.id.Plus(name)
	logger := t.env.config.TestLogger
	logger.TestStarted(id)
	if t.env.config.Filter != nil && !t.env.config.Filter.Match(id) {
		t.env.results.Skipped = append(t.env.results.Skipped, id)
		logger.TestSkipped(id, "excluded by filter parameters")
		return true
	}

	child := &T{id: id, env: t.env}
	t.debugLogger.Attach(&child.debugLogger)
	result := child.run(action)
	t.debugLogger.Detach(&child.debugLogger)

	if child.skipped && !child.failed {
		logger.TestSkipped(id, child.skipReason)
		return true
	}
	logger.TestFinished(id, result, child.debugLogger.Output())
	return !result.Failed()
}

// KnownIssue marks the scope so that a failure is reported separately with this explanation and
// does not make Results.OK return false.
func (t *T) KnownIssue(explanation string) {
	t.knownIssue = explanation
}

// Annotate attaches a key-value fact to the scope's result.
func (t *T) Annotate(key, value string) {
	t.annotations = append(t.annotations, Annotation{Key: key, Value: value})
}

// Errorf records a failure without ending the scope.
func (t *T) Errorf(format string, args ...interface{}) {
	err := transformError(fmt.Errorf(format, args...), getStacktrace(false, t.helperFns))
	t.recordError(err)
}

// FailNow ends the scope immediately and marks it failed.
func (t *T) FailNow() {
	t.failed = true
	panic(t)
}

// Skip ends the scope immediately and marks it skipped.
func (t *T) Skip() {
	t.skipped = true
	panic(t)
}

// Skipf is Skip with a formatted reason.
func (t *T) Skipf(format string, args ...interface{}) {
	t.skipReason = fmt.Sprintf(format, args...)
	t.Skip()
}

// Debugf writes a message to the scope's captured output.
func (t *T) Debugf(message string, args ...interface{}) {
	t.debugLogger.Printf(message, args...)
}

// DebugLogger returns the Logger for this scope. Captured output is passed to
// TestLogger.TestFinished when the scope ends; a subtest sees a copy of whatever its parent
// logged before it started, plus anything the parent logs while it runs.
func (t *T) DebugLogger() framework.Logger {
	return &t.debugLogger
}

// Cleanup registers a function to run when the scope exits, in last-in-first-out order.
func (t *T) Cleanup(fn func()) {
	t.cleanups = append(t.cleanups, fn)
}

// Context returns the value given in TestConfiguration.Context.
func (t *T) Context() interface{} {
	return t.env.config.Context
}

func (t *T) Capabilities() framework.Capabilities {
	return append(framework.Capabilities(nil), t.env.config.Capabilities...)
}

// RequireCapability skips the scope unless the run was configured with the named capability.
func (t *T) RequireCapability(name string) {
	if !t.env.config.Capabilities.Has(name) {
		t.Skipf("capability %q is not available", name)
	}
}

// Helper marks the calling function as a helper to be left out of failure stacktraces.
func (t *T) Helper() {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	if f := runtime.FuncForPC(pc); f != nil {
		t.helperFns = append(t.helperFns, f.Name())
	}
}
