package itest

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pqinterop/tls-interop-harness/framework"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// JUnitTestLogger accumulates results and writes them as JUnit XML when EndLog is called. Each
// top-level scope becomes a test suite carrying the run properties; annotations recorded with
// T.Annotate become properties of the individual test case.
type JUnitTestLogger struct {
	filePath   string
	properties map[string]string
	filters    RegexFilters
	testIDs    []TestID // in the order they started
	tests      map[string]jUnitTestStatus
	lock       sync.Mutex
}

type jUnitTestStatus struct {
	failures    []error
	skipped     ldvalue.OptionalString
	knownIssue  string
	annotations []Annotation
	output      string
	startTime   time.Time
	duration    time.Duration
}

// Element layout follows the schema used by github.com/jstemmer/go-junit-report.

type jUnitXMLDocument struct {
	XMLName xml.Name            `xml:"testsuites"`
	Suites  []jUnitXMLTestSuite `xml:"testsuite"`
}

type jUnitXMLTestSuite struct {
	XMLName    xml.Name           `xml:"testsuite"`
	Tests      int                `xml:"tests,attr"`
	Failures   int                `xml:"failures,attr"`
	Skipped    int                `xml:"skipped,attr"`
	Time       string             `xml:"time,attr"`
	Name       string             `xml:"name,attr"`
	Properties []jUnitXMLProperty `xml:"properties>property,omitempty"`
	TestCases  []jUnitXMLTestCase `xml:"testcase"`
}

type jUnitXMLTestCase struct {
	XMLName     xml.Name             `xml:"testcase"`
	Classname   string               `xml:"classname,attr"`
	Name        string               `xml:"name,attr"`
	Time        string               `xml:"time,attr"`
	Properties  []jUnitXMLProperty   `xml:"properties>property,omitempty"`
	SkipMessage *jUnitXMLSkipMessage `xml:"skipped,omitempty"`
	Failure     *jUnitXMLFailure     `xml:"failure,omitempty"`
}

type jUnitXMLSkipMessage struct {
	Message string `xml:"message,attr"`
}

type jUnitXMLProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type jUnitXMLFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

// NewJUnitTestLogger creates a logger that will write to filePath. properties describe the run
// (backends, transport and so on) and are copied into every suite.
func NewJUnitTestLogger(filePath string, properties map[string]string, filters RegexFilters) *JUnitTestLogger {
	return &JUnitTestLogger{
		filePath:   filePath,
		properties: maps.Clone(properties),
		filters:    filters,
		tests:      make(map[string]jUnitTestStatus),
	}
}

func (j *JUnitTestLogger) TestStarted(id TestID) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.testIDs = append(j.testIDs, id)
	j.tests[id.String()] = jUnitTestStatus{startTime: time.Now()}
}

func (j *JUnitTestLogger) TestError(id TestID, err error) {
	j.update(id, func(s *jUnitTestStatus) { s.failures = append(s.failures, err) })
}

func (j *JUnitTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	j.update(id, func(s *jUnitTestStatus) {
		s.output = debugOutput.ToString("")
		s.duration = time.Since(s.startTime)
		s.knownIssue = result.KnownIssue
		s.annotations = result.Annotations
	})
}

func (j *JUnitTestLogger) TestSkipped(id TestID, reason string) {
	j.update(id, func(s *jUnitTestStatus) { s.skipped = ldvalue.NewOptionalString(reason) })
}

func (j *JUnitTestLogger) update(id TestID, fn func(*jUnitTestStatus)) {
	j.lock.Lock()
	defer j.lock.Unlock()
	status := j.tests[id.String()]
	fn(&status)
	j.tests[id.String()] = status
}

// EndLog writes the XML file.
func (j *JUnitTestLogger) EndLog(results Results) error {
	j.lock.Lock()
	defer j.lock.Unlock()

	data, err := xml.MarshalIndent(j.document(), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(j.filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("writing JUnit report: %w", err)
	}
	return nil
}

func (j *JUnitTestLogger) runProperties() []jUnitXMLProperty {
	keys := maps.Keys(j.properties)
	slices.Sort(keys)
	props := make([]jUnitXMLProperty, 0, len(keys)+2)
	for _, k := range keys {
		props = append(props, jUnitXMLProperty{Name: k, Value: j.properties[k]})
	}
	return append(props,
		jUnitXMLProperty{Name: "tests.filter.mustMatch", Value: j.filters.MustMatch.String()},
		jUnitXMLProperty{Name: "tests.filter.mustNotMatch", Value: j.filters.MustNotMatch.String()},
	)
}

func (j *JUnitTestLogger) document() jUnitXMLDocument {
	var doc jUnitXMLDocument
	properties := j.runProperties()
	for _, topLevelID := range topLevelIDs(j.testIDs) {
		suite := jUnitXMLTestSuite{
			Name:       "TLS interop: " + topLevelID,
			Properties: properties,
		}
		var total time.Duration
		for _, testID := range j.testIDs {
			if len(testID) == 0 || testID[0] != topLevelID {
				continue
			}
			status := j.tests[testID.String()]
			suite.Tests++
			total += status.duration
			testCase := jUnitXMLTestCase{
				Classname: topLevelID,
				Name:      testID.String(),
				Time:      jUnitDurationString(status.duration),
			}
			for _, a := range status.annotations {
				testCase.Properties = append(testCase.Properties, jUnitXMLProperty{Name: a.Key, Value: a.Value})
			}
			if status.knownIssue != "" {
				testCase.Name += " (known issue)"
			}
			if status.skipped.IsDefined() {
				suite.Skipped++
				testCase.SkipMessage = &jUnitXMLSkipMessage{Message: status.skipped.StringValue()}
			}
			if len(status.failures) != 0 {
				suite.Failures++
				testCase.Failure = &jUnitXMLFailure{
					Message:  failureMessage(status.failures),
					Type:     failureType(status.knownIssue),
					Contents: status.output,
				}
			}
			suite.TestCases = append(suite.TestCases, testCase)
		}
		suite.Time = jUnitDurationString(total)
		doc.Suites = append(doc.Suites, suite)
	}
	return doc
}

func failureMessage(failures []error) string {
	messages := make([]string, 0, len(failures))
	for _, e := range failures {
		message := e.Error()
		if es, ok := e.(ErrorWithStacktrace); ok {
			message += "\n  Stacktrace:"
			for _, s := range es.Stacktrace {
				message += "\n    " + s.String()
			}
		}
		messages = append(messages, message)
	}
	return strings.Join(messages, "\n")
}

func failureType(knownIssue string) string {
	if knownIssue != "" {
		return "known-issue"
	}
	return ""
}

func topLevelIDs(allIDs []TestID) []string {
	var ret []string
	seen := make(map[string]bool)
	for _, testID := range allIDs {
		if len(testID) != 0 && !seen[testID[0]] {
			ret = append(ret, testID[0])
			seen[testID[0]] = true
		}
	}
	return ret
}

func jUnitDurationString(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
