// Package log provides the terminal logging helpers used across slicemgr.
// Output is colorized only when the destination is a TTY.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// ANSI escape codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	cyan   = "\033[36m"
	green  = "\033[32m"
	yellow = "\033[33m"
	red    = "\033[31m"
	grey   = "\033[90m"
)

var (
	mu      sync.Mutex
	stdout  io.Writer = os.Stdout
	stderr  io.Writer = os.Stderr
	verbose bool
)

// SetOutput redirects normal and error output. Passing nil keeps the current
// writer.
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

// SetVerbose enables or disables Debug output.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

// colorize wraps tag in an ANSI color sequence only when w is a terminal.
func colorize(w io.Writer, color, tag string) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return color + bold + tag + reset
	}
	return tag
}

func emit(toErr bool, color, tag, msg string) {
	mu.Lock()
	defer mu.Unlock()
	w := stdout
	if toErr {
		w = stderr
	}
	fmt.Fprintf(w, "%s %s\n", colorize(w, color, tag), msg)
}

func Info(msg string)  { emit(false, cyan, "[+]", msg) }
func Ok(msg string)    { emit(false, green, "[✓]", msg) }
func Skip(msg string)  { emit(false, yellow, "[=]", msg) }
func Warn(msg string)  { emit(true, yellow, "[~]", msg) }
func Error(msg string) { emit(true, red, "[!]", msg) }

// Debug is printed only in verbose mode.
func Debug(msg string) {
	mu.Lock()
	v := verbose
	mu.Unlock()
	if v {
		emit(true, grey, "[.]", msg)
	}
}
