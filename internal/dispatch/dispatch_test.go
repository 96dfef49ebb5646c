package dispatch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h3ow3d/slicemgr/internal/backend"
	"github.com/h3ow3d/slicemgr/internal/dispatch"
	"github.com/h3ow3d/slicemgr/internal/manifest"
	"github.com/h3ow3d/slicemgr/internal/types"
)

// fakeBackend writes a deploy script that records its argument count and a
// copy of the document it was given, then exits with code.
type fakeBackend struct {
	dir     string
	command backend.Command
}

func newFakeBackend(t *testing.T, code int, extra string) *fakeBackend {
	t.Helper()
	dir := t.TempDir()
	body := `#!/bin/sh
echo "$#" >> "` + dir + `/argc"
cp "$1" "` + dir + `/captured"
echo "$1" > "` + dir + `/path"
` + extra + `
echo "deploying from $1"
exit ` + strconv.Itoa(code) + "\n"
	path := filepath.Join(dir, "deploy.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return &fakeBackend{dir: dir, command: backend.Command{"/bin/sh", path}}
}

func (f *fakeBackend) read(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(f.dir, name))
	require.NoError(t, err)
	return string(b)
}

func demo() types.SliceSpec {
	return types.SliceSpec{
		Name:     "demo",
		Topology: "Ring",
		VMs:      []types.VMSpec{{Name: "demo-vm1", FlavorKey: "f1", Flavor: types.Flavor{Cores: 1, DiskGB: 10, RAMGB: 2}}},
	}
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, de := range des {
		names = append(names, de.Name())
	}
	return names
}

func TestDispatchSuccess(t *testing.T) {
	fb := newFakeBackend(t, 0, "")
	scratch := t.TempDir()
	d := dispatch.New(dispatch.Options{Command: fb.command, ScratchDir: scratch})

	before := entries(t, scratch)
	o := d.Dispatch(context.Background(), manifest.Materialized(demo()))

	assert.True(t, o.OK(), "outcome: %s", o)
	assert.Equal(t, dispatch.StatusSuccess, o.Status)
	assert.Contains(t, o.Detail, "deploying from")

	assert.Equal(t, "1\n", fb.read(t, "argc"), "backend must be invoked exactly once with one argument")
	decoded, err := manifest.LoadBytes([]byte(fb.read(t, "captured")), "captured")
	require.NoError(t, err)
	assert.Equal(t, "demo", decoded.Name)
	assert.Equal(t, demo(), *decoded)

	docPath := strings.TrimSpace(fb.read(t, "path"))
	assert.Equal(t, scratch, filepath.Dir(docPath))
	assert.True(t, strings.HasPrefix(filepath.Base(docPath), "slice-"))
	assert.Equal(t, ".json", filepath.Ext(docPath))

	assert.Equal(t, before, entries(t, scratch), "scratch document leaked")
}

func TestDispatchFailure(t *testing.T) {
	fb := newFakeBackend(t, 2, `echo "flavor f9 not available" >&2`)
	scratch := t.TempDir()
	d := dispatch.New(dispatch.Options{Command: fb.command, ScratchDir: scratch})

	o := d.Dispatch(context.Background(), manifest.Materialized(demo()))

	assert.False(t, o.OK())
	assert.Equal(t, dispatch.ReasonExit, o.Reason)
	assert.Equal(t, 2, o.ExitCode)
	assert.Contains(t, o.Detail, "flavor f9 not available")
	assert.Empty(t, entries(t, scratch))
}

func TestDispatchFailureWithoutOutputStillHasDetail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quiet.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 7\n"), 0o755))
	d := dispatch.New(dispatch.Options{Command: backend.Command{"/bin/sh", path}, ScratchDir: t.TempDir()})

	o := d.Dispatch(context.Background(), manifest.Materialized(demo()))
	assert.Equal(t, dispatch.ReasonExit, o.Reason)
	assert.Equal(t, "backend exited with status 7", o.Detail)
}

func TestDispatchUnavailable(t *testing.T) {
	scratch := t.TempDir()
	d := dispatch.New(dispatch.Options{Command: backend.Command{"/nonexistent/deploy"}, ScratchDir: scratch})

	o := d.Dispatch(context.Background(), manifest.Materialized(demo()))
	assert.Equal(t, dispatch.ReasonUnavailable, o.Reason)
	assert.NotEmpty(t, o.Detail)
	assert.Empty(t, entries(t, scratch), "scratch must be removed when the backend cannot start")
}

func TestDispatchTimeout(t *testing.T) {
	fb := newFakeBackend(t, 0, "exec sleep 5")
	scratch := t.TempDir()
	d := dispatch.New(dispatch.Options{Command: fb.command, ScratchDir: scratch, Timeout: 150 * time.Millisecond})

	start := time.Now()
	o := d.Dispatch(context.Background(), manifest.Materialized(demo()))

	assert.Equal(t, dispatch.ReasonTimeout, o.Reason)
	assert.Contains(t, o.Detail, "did not finish within 150ms")
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Empty(t, entries(t, scratch))
}

func TestDispatchOpaquePassThrough(t *testing.T) {
	fb := newFakeBackend(t, 0, "")
	scratch := t.TempDir()
	d := dispatch.New(dispatch.Options{Command: fb.command, ScratchDir: scratch, Format: manifest.FormatYAML})

	raw := "{\"name\": \"uploaded\", \"custom\": true}\n"
	o := d.Dispatch(context.Background(), manifest.Opaque([]byte(raw), "mine.json"))

	require.True(t, o.OK(), "outcome: %s", o)
	assert.Equal(t, raw, fb.read(t, "captured"))
	assert.Equal(t, ".json", filepath.Ext(strings.TrimSpace(fb.read(t, "path"))))
	assert.Empty(t, entries(t, scratch))
}

func TestDispatchYAMLFormat(t *testing.T) {
	fb := newFakeBackend(t, 0, "")
	d := dispatch.New(dispatch.Options{Command: fb.command, ScratchDir: t.TempDir(), Format: manifest.FormatYAML})

	require.True(t, d.Dispatch(context.Background(), manifest.Materialized(demo())).OK())
	assert.True(t, strings.HasPrefix(fb.read(t, "captured"), "name: demo\n"))
	assert.Equal(t, ".yaml", filepath.Ext(strings.TrimSpace(fb.read(t, "path"))))
}

func TestDispatchScratchDirCreated(t *testing.T) {
	fb := newFakeBackend(t, 0, "")
	scratch := filepath.Join(t.TempDir(), "nested", "scratch")
	d := dispatch.New(dispatch.Options{Command: fb.command, ScratchDir: scratch})

	require.True(t, d.Dispatch(context.Background(), manifest.Materialized(demo())).OK())
	assert.Empty(t, entries(t, scratch))
}

func TestDispatchScratchUnwritable(t *testing.T) {
	fb := newFakeBackend(t, 0, "")
	d := dispatch.New(dispatch.Options{Command: fb.command, ScratchDir: "/proc/slicemgr/scratch"})

	o := d.Dispatch(context.Background(), manifest.Materialized(demo()))
	assert.Equal(t, dispatch.ReasonScratch, o.Reason)
}

func TestDispatchIndependentAttempts(t *testing.T) {
	fb := newFakeBackend(t, 0, "")
	d := dispatch.New(dispatch.Options{Command: fb.command, ScratchDir: t.TempDir()})

	for range 3 {
		require.True(t, d.Dispatch(context.Background(), manifest.Materialized(demo())).OK())
	}
	assert.Equal(t, "1\n1\n1\n", fb.read(t, "argc"))
}

func TestExclusiveSerializesSameName(t *testing.T) {
	d := dispatch.New(dispatch.Options{})

	var active, maxActive atomic.Int32
	run := func(ctx context.Context) dispatch.Outcome {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return dispatch.Success("")
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Exclusive(context.Background(), "same", run)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestExclusiveDifferentNamesRunInParallel(t *testing.T) {
	d := dispatch.New(dispatch.Options{})

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	block := func(ctx context.Context) dispatch.Outcome {
		started <- struct{}{}
		<-release
		return dispatch.Success("")
	}

	go d.Exclusive(context.Background(), "a", block)
	go d.Exclusive(context.Background(), "b", block)

	for range 2 {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("different slice names did not run concurrently")
		}
	}
	close(release)
}

func TestExclusiveCanceledWhileWaiting(t *testing.T) {
	d := dispatch.New(dispatch.Options{})

	hold := make(chan struct{})
	entered := make(chan struct{})
	go d.Exclusive(context.Background(), "busy", func(context.Context) dispatch.Outcome {
		close(entered)
		<-hold
		return dispatch.Success("")
	})
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	o := d.Exclusive(ctx, "busy", func(context.Context) dispatch.Outcome {
		t.Error("must not run while the name is held")
		return dispatch.Success("")
	})
	assert.Equal(t, dispatch.ReasonCanceled, o.Reason)
	close(hold)
}

func TestClassify(t *testing.T) {
	d := dispatch.New(dispatch.Options{Timeout: time.Second})

	assert.True(t, d.Classify(backend.Result{Output: "ok\n"}, nil).OK())
	assert.Equal(t, "ok", d.Classify(backend.Result{Output: "ok\n"}, nil).Detail)

	o := d.Classify(backend.Result{ExitCode: 1, Output: "bad"}, nil)
	assert.Equal(t, dispatch.ReasonExit, o.Reason)
	assert.Equal(t, 1, o.ExitCode)

	assert.Equal(t, dispatch.ReasonTimeout, d.Classify(backend.Result{}, context.DeadlineExceeded).Reason)
	assert.Equal(t, dispatch.ReasonCanceled, d.Classify(backend.Result{}, context.Canceled).Reason)
	assert.Equal(t, dispatch.ReasonUnavailable, d.Classify(backend.Result{}, backend.ErrUnavailable).Reason)
	assert.Equal(t, dispatch.ReasonInvalid, d.Classify(backend.Result{}, errors.New("bad name")).Reason)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", dispatch.Success("x").String())
	assert.Equal(t, "failure (exit): boom", dispatch.Failure(dispatch.ReasonExit, "boom").String())
}
