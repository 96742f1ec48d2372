package itest

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// ErrorWithStacktrace is a failure message plus the call sites that led to it, outermost last.
type ErrorWithStacktrace struct {
	Message    string
	Stacktrace []StacktraceInfo
}

type StacktraceInfo struct {
	FileName string
	Package  string
	Function string
	Line     int
}

func (e ErrorWithStacktrace) Error() string { return e.Message }

func (s StacktraceInfo) String() string {
	packageName := strings.TrimPrefix(s.Package, rootPackageName()+"/")
	return fmt.Sprintf("%s.%s (%s:%d)", packageName, s.Function, s.FileName, s.Line)
}

var testifyTraceRegex = regexp.MustCompile(`^(?s:\s*Error Trace:.*\sError:\s*)`)

// transformError replaces any "Error Trace:" preamble that testify put into the message with
// our own stacktrace.
func transformError(err error, stacktrace []StacktraceInfo) error {
	message := err.Error()
	if strings.Contains(message, "Error Trace:") {
		message = strings.TrimSpace(testifyTraceRegex.ReplaceAllLiteralString(message, ""))
	}
	if len(stacktrace) == 0 {
		return errors.New(message)
	}
	return ErrorWithStacktrace{Message: message, Stacktrace: stacktrace}
}

func currentPackageName() string {
	pc, _, _, ok := runtime.Caller(0)
	if !ok {
		return "?"
	}
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "?"
	}
	packageName, _ := splitFunctionName(f.Name())
	return packageName
}

// rootPackageName is the module path, assuming a three-part host/owner/repo form.
func rootPackageName() string {
	parts := strings.Split(currentPackageName(), "/")
	if len(parts) < 3 {
		return strings.Join(parts, "/")
	}
	return strings.Join(parts[:3], "/")
}

// getStacktrace walks up from its caller to the root Run call. Frames in this package are
// omitted unless includeOwnFrames is set, and so are functions registered with T.Helper.
func getStacktrace(includeOwnFrames bool, helperFns []string) []StacktraceInfo {
	var callers []StacktraceInfo
	own := currentPackageName()
	for i := 1; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		f := runtime.FuncForPC(pc)
		if f == nil {
			break
		}
		packageName, functionName := splitFunctionName(f.Name())
		if packageName == own && functionName == "Run" {
			break
		}
		if (packageName == own && !includeOwnFrames) || isHelper(f.Name(), helperFns) {
			continue
		}
		callers = append(callers, StacktraceInfo{
			FileName: file[strings.LastIndex(file, "/")+1:],
			Package:  packageName,
			Function: functionName,
			Line:     line,
		})
	}
	return callers
}

func isHelper(name string, helperFns []string) bool {
	for _, h := range helperFns {
		if h == name {
			return true
		}
	}
	return false
}

func splitFunctionName(fullName string) (string, string) {
	lastSlash := strings.LastIndex(fullName, "/")
	dot := strings.Index(fullName[lastSlash+1:], ".")
	if dot < 0 {
		return fullName, ""
	}
	packageName := fullName[:lastSlash+1+dot]
	return packageName, fullName[len(packageName)+1:]
}
