package backend_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h3ow3d/slicemgr/internal/backend"
)

// script writes a /bin/sh script into a temp dir and returns a Command that
// runs it.
func script(t *testing.T, body string) backend.Command {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backend.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return backend.Command{"/bin/sh", path}
}

func TestRunSuccess(t *testing.T) {
	res, err := backend.Run(context.Background(), script(t, `echo "args: $*"`), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "args: a b\n", res.Output)
}

func TestRunNonZeroIsNotError(t *testing.T) {
	res, err := backend.Run(context.Background(), script(t, "echo boom >&2; exit 3"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom\n", res.Output)
}

func TestRunUnavailable(t *testing.T) {
	_, err := backend.Run(context.Background(), backend.Command{"/nonexistent/deploy"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrUnavailable))

	_, err = backend.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, backend.ErrUnavailable))
}

func TestRunContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := backend.Run(ctx, script(t, "exec sleep 5"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestParseCommand(t *testing.T) {
	assert.Equal(t, backend.Command{"python3", "deploy_from_jsonv2.py"}, backend.ParseCommand("  python3   deploy_from_jsonv2.py "))
	assert.Empty(t, backend.ParseCommand(""))
	assert.Equal(t, "bash list_slices.sh", backend.Command{"bash", "list_slices.sh"}.String())
}

func TestCheckName(t *testing.T) {
	assert.NoError(t, backend.CheckName("demo"))
	for _, bad := range []string{"", "  ", "-rf", "a\nb"} {
		assert.Error(t, backend.CheckName(bad), "%q", bad)
	}
}

func TestClientListSlices(t *testing.T) {
	c := &backend.Client{List: script(t, `printf 'alpha\n\n  beta  \ngamma'`)}
	names, err := c.ListSlices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names)
}

func TestClientListSlicesIgnoresStderr(t *testing.T) {
	c := &backend.Client{List: script(t, "echo 'warning: cache stale' >&2; echo alpha; echo beta")}
	names, err := c.ListSlices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)
}

func TestRunSeparatesStdout(t *testing.T) {
	res, err := backend.Run(context.Background(), script(t, "echo out; echo err >&2"))
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Contains(t, res.Output, "out\n")
	assert.Contains(t, res.Output, "err\n")
}

func TestClientListSlicesFailure(t *testing.T) {
	c := &backend.Client{List: script(t, "echo nope; exit 1")}
	names, err := c.ListSlices(context.Background())
	assert.Nil(t, names)

	var exitErr *backend.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.ExitCode)
	assert.Contains(t, err.Error(), "nope")
}

func TestClientShowSlice(t *testing.T) {
	c := &backend.Client{Show: script(t, `echo "slice $1: 3 VMs running"`)}
	info, err := c.ShowSlice(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "slice demo: 3 VMs running\n", info)

	c.Show = backend.Command{"/nonexistent/show"}
	_, err = c.ShowSlice(context.Background(), "demo")
	assert.True(t, errors.Is(err, backend.ErrUnavailable))

	_, err = c.ShowSlice(context.Background(), "-x")
	assert.Error(t, err)
}

func TestClientDeleteSlice(t *testing.T) {
	c := &backend.Client{Delete: script(t, `echo "deleting $1"; exit 4`)}
	res, err := c.DeleteSlice(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, 4, res.ExitCode)
	assert.Equal(t, "deleting demo\n", res.Output)
}
