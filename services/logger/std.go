package logsvc

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/trezcool/masomo-attendance/core"
)

// StdLogger only writes to a std logger. Debug entries are dropped unless debug is set.
type StdLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger, debug bool) *StdLogger {
	return &StdLogger{std: std, debug: debug}
}

// NewDiscardLogger is handy in tests.
func NewDiscardLogger() *StdLogger {
	return &StdLogger{std: log.New(io.Discard, "", 0)}
}

func (l StdLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		printEntry(l.std, "DEBUG", msg, args)
	}
}

func (l StdLogger) Info(msg string, args ...interface{}) { printEntry(l.std, "INFO", msg, args) }
func (l StdLogger) Warn(msg string, args ...interface{}) { printEntry(l.std, "WARN", msg, args) }
func (l StdLogger) Error(msg string, args ...interface{}) { printEntry(l.std, "ERROR", msg, args) }

func (l StdLogger) Fatal(msg string, args ...interface{}) {
	printEntry(l.std, "FATAL", msg, args)
	l.std.Fatal(msg)
}

// printEntry writes one line: LEVEL msg key=value ... error=%+v
func printEntry(std *log.Logger, level, msg string, args []interface{}) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for _, arg := range args {
		switch val := arg.(type) {
		case nil:
		case error:
			_, _ = fmt.Fprintf(&b, " error=%q", val.Error())
		case map[string]interface{}:
			keys := make([]string, 0, len(val))
			for k := range val {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				_, _ = fmt.Fprintf(&b, " %s=%v", k, val[k])
			}
		default:
			_, _ = fmt.Fprintf(&b, " %+v", val)
		}
	}
	_ = std.Output(3, b.String())
}
