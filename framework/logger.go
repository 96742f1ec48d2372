package framework

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger is the minimal logging interface used by connections, pairs and test scopes.
type Logger interface {
	Println(args ...interface{})
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (n nullLogger) Println(args ...interface{})                {}
func (n nullLogger) Printf(message string, args ...interface{}) {}

func NullLogger() Logger { return nullLogger{} }

// OrNull returns l, or a Logger that discards everything if l is nil.
func OrNull(l Logger) Logger {
	if l == nil {
		return nullLogger{}
	}
	return l
}

// ProcessLogger writes to a zerolog.Logger at debug level. It is what the command-line runner
// hands to components that log outside of any test scope.
type ProcessLogger struct {
	zl zerolog.Logger
}

// NewProcessLogger creates a console-formatted zerolog logger. If debug is false, messages
// logged through the Logger interface are suppressed and only warnings and errors remain.
func NewProcessLogger(out io.Writer, debug bool) ProcessLogger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: timestampFormat}).
		Level(level).
		With().Timestamp().Str("app", "tls-interop").Logger()
	return ProcessLogger{zl: zl}
}

// Zerolog returns the underlying logger for structured events.
func (p ProcessLogger) Zerolog() zerolog.Logger { return p.zl }

func (p ProcessLogger) Println(args ...interface{}) {
	p.zl.Debug().Msg(strings.TrimRight(fmt.Sprintln(args...), "\r\n"))
}

func (p ProcessLogger) Printf(message string, args ...interface{}) {
	p.zl.Debug().Msgf(message, args...)
}

type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// CapturingLogger records everything logged in one test scope. While a child logger is attached,
// new messages go to the child instead of the parent; a newly attached child starts with a copy
// of the parent's output so far.
type CapturingLogger struct {
	lock     sync.Mutex
	output   CapturedOutput
	children []*CapturingLogger
}

func (l *CapturingLogger) Println(args ...interface{}) {
	l.record(strings.TrimRight(fmt.Sprintln(args...), "\r\n"))
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.record(fmt.Sprintf(message, args...))
}

func (l *CapturingLogger) record(message string) {
	l.appendMessage(CapturedMessage{Time: time.Now(), Message: message})
}

func (l *CapturingLogger) appendMessage(m CapturedMessage) {
	l.lock.Lock()
	children := append([]*CapturingLogger(nil), l.children...)
	if len(children) == 0 {
		l.output = append(l.output, m)
	}
	l.lock.Unlock()
	for _, c := range children {
		c.appendMessage(m)
	}
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append(CapturedOutput(nil), l.output...)
}

func (l *CapturingLogger) Attach(child *CapturingLogger) {
	inherited := l.Output()
	l.lock.Lock()
	l.children = append(l.children, child)
	l.lock.Unlock()
	child.lock.Lock()
	child.output = append(inherited, child.output...)
	child.lock.Unlock()
}

func (l *CapturingLogger) Detach(child *CapturingLogger) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for i, c := range l.children {
		if c == child {
			l.children = append(l.children[:i], l.children[i+1:]...)
			return
		}
	}
}

// ToString formats the output one message per line, each preceded by prefix and a timestamp.
func (output CapturedOutput) ToString(prefix string) string {
	lines := make([]string, 0, len(output))
	for _, m := range output {
		lines = append(lines, fmt.Sprintf("%s[%s] %s", prefix, m.Time.Format(timestampFormat), m.Message))
	}
	return strings.Join(lines, "\n")
}

type prefixedLogger struct {
	base   Logger
	prefix string
}

func LoggerWithPrefix(baseLogger Logger, prefix string) Logger {
	return prefixedLogger{OrNull(baseLogger), prefix}
}

func (p prefixedLogger) Println(args ...interface{}) {
	p.base.Println(append([]interface{}{p.prefix}, args...)...)
}

func (p prefixedLogger) Printf(message string, args ...interface{}) {
	p.base.Printf(p.prefix+message, args...)
}
