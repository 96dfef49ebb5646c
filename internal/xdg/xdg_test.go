package xdg_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/h3ow3d/slicemgr/internal/xdg"
)

func TestDefault_Structure(t *testing.T) {
	dirs := xdg.Default()

	if dirs.Config == "" {
		t.Error("Config must not be empty")
	}
	if dirs.State == "" {
		t.Error("State must not be empty")
	}
}

func TestDirs_SubPaths(t *testing.T) {
	dirs := xdg.Dirs{
		Config: "/tmp/cfg/slicemgr",
		State:  "/tmp/state/slicemgr",
	}

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"ConfigFile", dirs.ConfigFile(), "/tmp/cfg/slicemgr/config.yaml"},
		{"ScratchDir", dirs.ScratchDir(), "/tmp/state/slicemgr/scratch"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s = %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}

func TestDefault_EnvOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmp, "state"))

	dirs := xdg.Default()

	if dirs.Config != filepath.Join(tmp, "config", "slicemgr") {
		t.Errorf("Config = %q, want %q", dirs.Config, filepath.Join(tmp, "config", "slicemgr"))
	}
	if dirs.State != filepath.Join(tmp, "state", "slicemgr") {
		t.Errorf("State = %q, want %q", dirs.State, filepath.Join(tmp, "state", "slicemgr"))
	}
}

func TestEnsureDirs_CreatesAll(t *testing.T) {
	tmp := t.TempDir()
	dirs := xdg.Dirs{
		Config: filepath.Join(tmp, "config", "slicemgr"),
		State:  filepath.Join(tmp, "state", "slicemgr"),
	}

	if err := dirs.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	if err := dirs.EnsureDirs(); err != nil {
		t.Fatalf("second EnsureDirs (idempotency): %v", err)
	}

	for _, d := range []string{dirs.Config, dirs.ScratchDir()} {
		info, err := os.Stat(d)
		if err != nil {
			t.Errorf("expected directory %s to exist: %v", d, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", d)
		}
	}
}
