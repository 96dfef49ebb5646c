// Package backend runs the external commands that own slice state: deploy,
// list, show and delete. Nothing here interprets slice documents.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrUnavailable means a backend command could not be started at all.
var ErrUnavailable = errors.New("backend unavailable")

// waitDelay bounds how long Run waits for output pipes after the process has
// been killed on context expiry.
const waitDelay = 2 * time.Second

// Command is an executable followed by fixed leading arguments, e.g.
// ["python3", "deploy_from_jsonv2.py"].
type Command []string

// ParseCommand splits s on whitespace.
func ParseCommand(s string) Command { return Command(strings.Fields(s)) }

func (c Command) String() string { return strings.Join(c, " ") }

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	Output   string // stdout and stderr, interleaved
	Stdout   string // stdout alone
}

// lockedWriter serializes writes from the stdout and stderr copy goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// ExitError reports a backend command that exited non-zero.
type ExitError struct {
	Command Command
	Result
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Output)
	if msg == "" {
		msg = "no output"
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.ExitCode, msg)
}

// Run executes cmd with args appended and waits for it. A non-zero exit is
// reported in Result, not as an error. Errors wrap ErrUnavailable when the
// process could not start, or the context error when ctx ended first.
func Run(ctx context.Context, cmd Command, args ...string) (Result, error) {
	if len(cmd) == 0 {
		return Result{}, fmt.Errorf("%w: no command configured", ErrUnavailable)
	}

	full := append(append([]string{}, cmd[1:]...), args...)
	c := exec.CommandContext(ctx, cmd[0], full...) //nolint:gosec // command comes from operator configuration
	var out, stdout bytes.Buffer
	combined := &lockedWriter{w: &out}
	c.Stdout = io.MultiWriter(combined, &stdout)
	c.Stderr = combined
	c.WaitDelay = waitDelay

	err := c.Run()
	res := Result{Output: out.String(), Stdout: stdout.String()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", cmd, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("%w: %s: %v", ErrUnavailable, cmd, err)
}

// CheckName rejects slice names that cannot be passed safely as a single
// argument to a backend command.
func CheckName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("slice name must not be empty")
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("slice name %q must not start with '-'", name)
	case strings.ContainsAny(name, "\x00\n\r"):
		return fmt.Errorf("slice name %q contains control characters", name)
	}
	return nil
}
