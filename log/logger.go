// Package log provides a minimal logger threaded explicitly through
// component constructors rather than held as a package-level global.
package log

import (
	"fmt"
	"io"
)

// Logger is a thin wrapper around an io.Writer with a verbosity gate.
type Logger struct {
	io.Writer
	verbose bool
}

// New returns a new logger which writes to w.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

// SetVerbose toggles whether Verbosef actually writes.
func (l *Logger) SetVerbose(v bool) {
	l.verbose = v
}

// Logln logs a line.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string without a trailing newline.
func (l *Logger) Logf(f string, args ...interface{}) {
	fmt.Fprintf(l, f, args...)
}

// Verbosef logs a formatted line only when verbose mode is on.
func (l *Logger) Verbosef(f string, args ...interface{}) {
	if !l.verbose {
		return
	}
	fmt.Fprintf(l, "forge: "+f+"\n", args...)
}

// LogScopefln logs a formatted line prefixed with a diagnostic scope.
func (l *Logger) LogScopefln(scope, format string, args ...interface{}) {
	fmt.Fprintf(l, "forge[%s]: "+format+"\n", append([]interface{}{scope}, args...)...)
}
