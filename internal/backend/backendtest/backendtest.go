// Package backendtest builds shell-script stand-ins for the backend commands.
package backendtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/h3ow3d/slicemgr/internal/backend"
)

// Scripts holds /bin/sh bodies for each backend command. An empty body
// leaves that command unset.
type Scripts struct {
	Deploy string
	List   string
	Show   string
	Delete string
}

// Fake is a backend made of scripts in Dir. Deploy scripts can write into
// Dir to record what they were given.
type Fake struct {
	Dir    string
	Client *backend.Client
}

// New writes the scripts into a temp dir. Occurrences of $DIR in a body are
// left to the shell; the variable is exported to every script.
func New(t testing.TB, s Scripts) *Fake {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) backend.Command {
		if body == "" {
			return nil
		}
		path := filepath.Join(dir, name)
		content := "#!/bin/sh\nDIR=\"" + dir + "\"\n" + body + "\n"
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return backend.Command{"/bin/sh", path}
	}
	return &Fake{
		Dir: dir,
		Client: &backend.Client{
			Deploy: write("deploy.sh", s.Deploy),
			List:   write("list.sh", s.List),
			Show:   write("show.sh", s.Show),
			Delete: write("delete.sh", s.Delete),
		},
	}
}

// Read returns the contents of a file the scripts wrote into Dir.
func (f *Fake) Read(t testing.TB, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(f.Dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(b)
}
