package itest

import (
	"fmt"
	"strings"
	"time"
)

// Results is the outcome of a whole run. Every scope that ran to completion appears in Tests,
// children before their parents. A scope with errors also appears in Failures, or in KnownIssues
// if it was marked with T.KnownIssue.
type Results struct {
	Tests       []TestResult
	Failures    []TestResult
	KnownIssues []TestResult
	Skipped     []TestID
}

type TestResult struct {
	TestID      TestID
	Errors      []error
	Annotations []Annotation
	KnownIssue  string
	Duration    time.Duration
}

// Annotation is a key-value fact attached to a test scope, such as the backend or group under test.
type Annotation struct {
	Key   string
	Value string
}

func (r TestResult) Failed() bool {
	return len(r.Errors) != 0
}

// Annotation returns the last value recorded for key.
func (r TestResult) Annotation(key string) (string, bool) {
	for i := len(r.Annotations) - 1; i >= 0; i-- {
		if r.Annotations[i].Key == key {
			return r.Annotations[i].Value, true
		}
	}
	return "", false
}

// OK is true if nothing failed, apart from known issues.
func (r Results) OK() bool {
	return len(r.Failures) == 0
}

type TestID []string

func (t TestID) String() string {
	return strings.Join(t, "/")
}

// Plus returns a new ID with name appended; t is not modified.
func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}

func (f TestFailure) Unwrap() error { return f.Err }
