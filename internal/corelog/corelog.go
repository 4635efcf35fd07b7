// Package corelog is a small leveled logger: Errorf, Infof, Debugf and
// Tracef on a Logger that drops anything less severe than its level.
// No other package in this module imports it. It is deliberately
// narrower than a full logging framework — no syslog/journald backends, no flag
// registration — the way rclone's fs.LogLevel is a narrow enum around
// a much larger CLI surface this package doesn't need.
package corelog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a log severity, ordered from most to least severe.
type Level int

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// Logger writes leveled, line-oriented log messages. The zero value is
// not usable; construct one with New.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
	name  string
}

// New creates a Logger tagged with name, writing to out and filtering
// out anything below level.
func New(name string, out io.Writer, level Level) *Logger {
	return &Logger{out: out, level: level, name: name}
}

// SetLevel changes the minimum level that will be written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) logf(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level > l.level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(l.out, "%s %-5s %s: %s\n", ts, level, l.name, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Tracef(format string, args ...any) { l.logf(LevelTrace, format, args...) }

// Default is the package-wide logger used by components that don't
// have one injected explicitly. It writes to stderr at LevelInfo,
// matching the common CLI-tool default.
var Default = New("subversion-sub001", os.Stderr, LevelInfo)
