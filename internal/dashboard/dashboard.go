// Package dashboard renders a live slice overview in-place on the terminal.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/h3ow3d/slicemgr/internal/backend"
)

const (
	lineWidth       = 70
	defaultInterval = 2 * time.Second
)

// Source is where the dashboard reads slice state from. *slice.Manager
// satisfies it.
type Source interface {
	List(ctx context.Context) []string
	Show(ctx context.Context, name string) (string, error)
}

// Options configures Run.
type Options struct {
	Out        io.Writer
	Interval   time.Duration
	ScratchDir string
}

// Run redraws the dashboard every Interval until ctx ends.
func Run(ctx context.Context, src Source, opts Options) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	prevLines := 0

	fmt.Fprint(opts.Out, "\033[?25l")
	defer fmt.Fprint(opts.Out, "\033[?25h")

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		if prevLines > 0 {
			fmt.Fprintf(opts.Out, "\033[%dF", prevLines)
		}
		lines := Render(ctx, src, opts.ScratchDir, time.Now())
		for _, l := range lines {
			fmt.Fprintf(opts.Out, "%s\033[K\n", l)
		}
		prevLines = len(lines)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Render builds all dashboard lines for one frame.
func Render(ctx context.Context, src Source, scratchDir string, now time.Time) []string {
	var out []string

	out = append(out, fmt.Sprintf("== slicemgr  %s ==", now.Format("15:04:05")))
	out = append(out, "")
	out = append(out, renderSlices(ctx, src)...)
	out = append(out, renderScratch(scratchDir, now)...)

	return out
}

func section(title string) string {
	prefix := "-- " + title + " "
	padLen := max(lineWidth-len(prefix), 1)
	return prefix + strings.Repeat("-", padLen)
}

func renderSlices(ctx context.Context, src Source) []string {
	var out []string
	out = append(out, section("SLICES"))
	out = append(out, fmt.Sprintf("  %-24s  %s", "NAME", "STATUS"))

	names := src.List(ctx)
	if len(names) == 0 {
		out = append(out, "  (no slices)")
	}
	for _, name := range names {
		out = append(out, fmt.Sprintf("  %-24s  %s", name, status(ctx, src, name)))
	}

	out = append(out, "")
	return out
}

// status is the first non-blank line the show backend prints for name.
func status(ctx context.Context, src Source, name string) string {
	info, err := src.Show(ctx, name)
	var exitErr *backend.ExitError
	switch {
	case errors.Is(err, backend.ErrUnavailable):
		return "(show unavailable)"
	case errors.As(err, &exitErr):
		return fmt.Sprintf("(show exited %d)", exitErr.Result.ExitCode)
	case err != nil:
		return "(" + err.Error() + ")"
	}
	for _, line := range strings.Split(info, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return "(no status)"
}

// renderScratch lists documents still waiting in the scratch dir, i.e.
// deploys in flight.
func renderScratch(dir string, now time.Time) []string {
	var out []string
	out = append(out, section("IN FLIGHT"))
	out = append(out, fmt.Sprintf("  %-48s  %-8s  %s", "DOCUMENT", "SIZE", "AGE"))

	matches, _ := filepath.Glob(filepath.Join(dir, "slice-*"))
	sort.Strings(matches)
	found := false
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		found = true
		age := now.Sub(fi.ModTime()).Truncate(time.Second)
		out = append(out, fmt.Sprintf("  %-48s  %-8s  %s", filepath.Base(m), fileSize(fi.Size()), age))
	}
	if !found {
		out = append(out, "  (no deploys in flight)")
	}

	out = append(out, "")
	return out
}

// fileSize returns a human-readable size string.
func fileSize(sz int64) string {
	const kb = 1024
	const mb = 1024 * kb
	switch {
	case sz >= mb:
		return fmt.Sprintf("%.1fM", float64(sz)/mb)
	case sz >= kb:
		return fmt.Sprintf("%.1fK", float64(sz)/kb)
	default:
		return fmt.Sprintf("%dB", sz)
	}
}
