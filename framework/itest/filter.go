package itest

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pqinterop/tls-interop-harness/framework"
)

// Filter decides whether the scope with the given ID should run.
type Filter interface {
	Match(id TestID) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(TestID) bool

func (f FilterFunc) Match(id TestID) bool { return f(id) }

// RegexFilters implements the -run and -skip command-line options. A scope runs if it matches
// any MustMatch pattern (or there are none) and matches no MustNotMatch pattern. A MustMatch
// pattern also admits the parents of the scopes it names.
type RegexFilters struct {
	MustMatch    TestIDPatternList
	MustNotMatch TestIDPatternList
}

func (r RegexFilters) Match(id TestID) bool {
	if r.MustMatch.IsDefined() && !r.MustMatch.AnyMatch(id, true) {
		return false
	}
	return !r.MustNotMatch.AnyMatch(id, false)
}

// TestIDPattern is one regular expression per ID component, split on "/".
type TestIDPattern []*regexp.Regexp

// Match checks the components that both the pattern and id have. If the pattern is longer than
// id, the result depends on includeParents.
func (p TestIDPattern) Match(id TestID, includeParents bool) bool {
	if len(p) > len(id) && !includeParents {
		return false
	}
	for i := 0; i < len(p) && i < len(id); i++ {
		if !p[i].MatchString(id[i]) {
			return false
		}
	}
	return true
}

func (p TestIDPattern) String() string {
	ss := make([]string, 0, len(p))
	for _, c := range p {
		ss = append(ss, c.String())
	}
	return strings.Join(ss, "/")
}

func ParseTestIDPattern(s string) (TestIDPattern, error) {
	parts := strings.Split(s, "/")
	ret := make(TestIDPattern, 0, len(parts))
	for _, part := range parts {
		rx, err := regexp.Compile(part)
		if err != nil {
			return nil, fmt.Errorf("invalid test ID pattern %q: %w", s, err)
		}
		ret = append(ret, rx)
	}
	return ret, nil
}

type TestIDPatternList []TestIDPattern

func (l TestIDPatternList) String() string {
	ss := make([]string, 0, len(l))
	for _, p := range l {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set implements flag.Value, so the list can be given as a repeatable flag.
func (l *TestIDPatternList) Set(value string) error {
	p, err := ParseTestIDPattern(value)
	if err != nil {
		return err
	}
	*l = append(*l, p)
	return nil
}

func (l TestIDPatternList) IsDefined() bool {
	return len(l) != 0
}

func (l TestIDPatternList) AnyMatch(id TestID, includeParents bool) bool {
	for _, p := range l {
		if p.Match(id, includeParents) {
			return true
		}
	}
	return false
}

// PrintFilterDescription explains to the user which checks will not run: those excluded by the
// filters, and those needing a capability that none of the selected backends has.
func PrintFilterDescription(w io.Writer, filters RegexFilters, wanted, available framework.Capabilities) {
	if filters.MustMatch.IsDefined() || filters.MustNotMatch.IsDefined() {
		fmt.Fprintln(w, "Some checks will be skipped based on the filter criteria for this run:")
		if filters.MustMatch.IsDefined() {
			fmt.Fprintf(w, "  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			fmt.Fprintf(w, "  skip any matching %s\n", filters.MustNotMatch)
		}
		fmt.Fprintln(w)
	}

	var missing []string
	for _, c := range wanted {
		if !available.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintln(w, "Some checks may be skipped because no selected backend supports:")
		fmt.Fprintf(w, "  %s\n", strings.Join(missing, ", "))
		fmt.Fprintln(w)
	}
}
