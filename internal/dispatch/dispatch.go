// Package dispatch hands slice documents to the external deployment backend
// and classifies what happened.
//
// Every dispatch writes its document to a fresh scratch file, runs the
// backend with that path as its only argument, and removes the file again
// whatever the result. Dispatches for the same slice name are serialized;
// different names run in parallel.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/h3ow3d/slicemgr/internal/backend"
	"github.com/h3ow3d/slicemgr/internal/log"
	"github.com/h3ow3d/slicemgr/internal/manifest"
)

// Options configures a Dispatcher.
type Options struct {
	// Command is the deployment backend, invoked as `<Command...> <doc-path>`.
	Command backend.Command
	// ScratchDir receives the temporary documents. Defaults to os.TempDir().
	ScratchDir string
	// Format is the encoding of materialized specs. Defaults to JSON.
	Format manifest.Format
	// Timeout bounds each backend invocation. Zero disables it.
	Timeout time.Duration
}

// Dispatcher invokes the deployment backend. It holds no state between calls
// apart from the per-name locks of calls in flight.
type Dispatcher struct {
	opts  Options
	locks keyedMutex
}

// New returns a Dispatcher for opts.
func New(opts Options) *Dispatcher {
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	if opts.Format == "" {
		opts.Format = manifest.FormatJSON
	}
	return &Dispatcher{opts: opts}
}

// Dispatch deploys doc and reports the outcome. It never panics on backend
// failure and never retries.
func (d *Dispatcher) Dispatch(ctx context.Context, doc manifest.Document) Outcome {
	body, err := doc.Bytes(d.opts.Format)
	if err != nil {
		return Failure(ReasonEncode, err.Error())
	}
	name := doc.SliceName()

	return d.Exclusive(ctx, name, func(ctx context.Context) Outcome {
		path, err := d.writeScratch(body, doc.Ext(d.opts.Format))
		if err != nil {
			return Failure(ReasonScratch, err.Error())
		}
		defer d.removeScratch(path)

		log.Debug(fmt.Sprintf("Dispatching slice %q via %s %s", name, d.opts.Command, path))
		res, err := backend.Run(ctx, d.opts.Command, path)
		return d.classify(res, err)
	})
}

// Exclusive runs fn while holding the lock for slice name, with the
// configured timeout applied to fn's context. An empty name carries no
// identity and is not locked.
func (d *Dispatcher) Exclusive(ctx context.Context, name string, fn func(context.Context) Outcome) Outcome {
	if name != "" {
		unlock, err := d.locks.lock(ctx, name)
		if err != nil {
			return Failure(ReasonCanceled, fmt.Sprintf("waiting for slice %q: %v", name, err))
		}
		defer unlock()
	}

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}
	return fn(ctx)
}

// Classify maps a backend result onto an Outcome using d's timeout for
// diagnostics. It is exported for commands that share the dispatcher's lock
// but not its scratch handling, such as delete.
func (d *Dispatcher) Classify(res backend.Result, err error) Outcome {
	return d.classify(res, err)
}

func (d *Dispatcher) classify(res backend.Result, err error) Outcome {
	output := strings.TrimSpace(res.Output)

	switch {
	case err == nil && res.ExitCode == 0:
		return Success(output)
	case err == nil:
		detail := output
		if detail == "" {
			detail = fmt.Sprintf("backend exited with status %d", res.ExitCode)
		}
		o := Failure(ReasonExit, detail)
		o.ExitCode = res.ExitCode
		return o
	case errors.Is(err, context.DeadlineExceeded):
		return Failure(ReasonTimeout, joinDetail(fmt.Sprintf("backend did not finish within %s", d.opts.Timeout), output))
	case errors.Is(err, context.Canceled):
		return Failure(ReasonCanceled, joinDetail("dispatch canceled", output))
	case errors.Is(err, backend.ErrUnavailable):
		return Failure(ReasonUnavailable, err.Error())
	}
	return Failure(ReasonInvalid, err.Error())
}

func joinDetail(head, output string) string {
	if output == "" {
		return head
	}
	return head + ": " + output
}

// writeScratch creates a uniquely named document in the scratch dir.
func (d *Dispatcher) writeScratch(body []byte, ext string) (string, error) {
	if err := os.MkdirAll(d.opts.ScratchDir, 0o700); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}

	path := filepath.Join(d.opts.ScratchDir, "slice-"+uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create scratch document: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write scratch document: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close scratch document: %w", err)
	}
	return path, nil
}

func (d *Dispatcher) removeScratch(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn(fmt.Sprintf("could not remove scratch document %s: %v", path, err))
	}
}
