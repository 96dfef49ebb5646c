package dashboard_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h3ow3d/slicemgr/internal/backend"
	"github.com/h3ow3d/slicemgr/internal/dashboard"
)

type fakeSource struct {
	names []string
	info  map[string]string
	errs  map[string]error
}

func (f fakeSource) List(context.Context) []string { return f.names }

func (f fakeSource) Show(_ context.Context, name string) (string, error) {
	if err := f.errs[name]; err != nil {
		return "", err
	}
	return f.info[name], nil
}

func find(lines []string, prefix string) string {
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), prefix) {
			return l
		}
	}
	return ""
}

func TestRenderSlices(t *testing.T) {
	src := fakeSource{
		names: []string{"alpha", "beta", "gamma", "delta"},
		info:  map[string]string{"alpha": "\n  running (3 VMs)\nextra\n", "delta": "   \n"},
		errs: map[string]error{
			"beta":  &backend.ExitError{Result: backend.Result{ExitCode: 2}},
			"gamma": fmt.Errorf("show: %w", backend.ErrUnavailable),
		},
	}
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	lines := dashboard.Render(context.Background(), src, t.TempDir(), now)
	assert.Equal(t, "== slicemgr  15:04:05 ==", lines[0])
	assert.Contains(t, find(lines, "alpha"), "running (3 VMs)")
	assert.Contains(t, find(lines, "beta"), "(show exited 2)")
	assert.Contains(t, find(lines, "gamma"), "(show unavailable)")
	assert.Contains(t, find(lines, "delta"), "(no status)")
	assert.NotEmpty(t, find(lines, "(no deploys in flight)"))
}

func TestRenderEmpty(t *testing.T) {
	lines := dashboard.Render(context.Background(), fakeSource{}, t.TempDir(), time.Now())
	assert.NotEmpty(t, find(lines, "(no slices)"))
}

func TestRenderInFlight(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slice-1234.json")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 2048), 0o600))
	now := time.Now()
	require.NoError(t, os.Chtimes(path, now.Add(-90*time.Second), now.Add(-90*time.Second)))

	lines := dashboard.Render(context.Background(), fakeSource{}, dir, now)
	row := find(lines, "slice-1234.json")
	require.NotEmpty(t, row)
	assert.Contains(t, row, "2.0K")
	assert.Contains(t, row, "1m30s")
}

func TestRunStopsOnCancel(t *testing.T) {
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dashboard.Run(ctx, fakeSource{names: []string{"alpha"}}, dashboard.Options{Out: &out, ScratchDir: t.TempDir()})
	assert.Contains(t, out.String(), "alpha")
	assert.True(t, strings.HasSuffix(out.String(), "\033[?25h"), "cursor must be restored")
}
