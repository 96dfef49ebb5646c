// Package doctor checks that the configured backend commands and working
// directories are usable before any slice is dispatched.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/h3ow3d/slicemgr/internal/backend"
	"github.com/h3ow3d/slicemgr/internal/config"
	"github.com/h3ow3d/slicemgr/internal/xdg"
)

// CheckResult holds the outcome of a single doctor check.
type CheckResult struct {
	Name     string
	OK       bool
	Message  string
	HowToFix string
}

// Run performs all prerequisite checks and returns the results. It never
// returns an error itself; pass/fail is encoded in each CheckResult.
func Run(cfg *config.Config, dirs xdg.Dirs) []CheckResult {
	client := cfg.Client()
	return []CheckResult{
		checkCommand("deploy backend", client.Deploy),
		checkCommand("list backend", client.List),
		checkCommand("show backend", client.Show),
		checkCommand("delete backend", client.Delete),
		checkScratch(cfg.ScratchDir),
		checkXDGWrite(dirs),
	}
}

// checkCommand verifies that the command's executable resolves on PATH, and
// that a script argument, if any, exists.
func checkCommand(name string, cmd backend.Command) CheckResult {
	if len(cmd) == 0 {
		return CheckResult{
			Name:     name,
			OK:       false,
			Message:  "no command configured",
			HowToFix: "Set the command under backend: in config.yaml or via SLICEMGR_*_CMD.",
		}
	}
	path, err := exec.LookPath(cmd[0])
	if err != nil {
		return CheckResult{
			Name:     name,
			OK:       false,
			Message:  fmt.Sprintf("%s not found in PATH", cmd[0]),
			HowToFix: installHint(cmd[0]),
		}
	}
	if len(cmd) > 1 && isScript(cmd[1]) {
		if _, err := os.Stat(cmd[1]); err != nil {
			return CheckResult{
				Name:     name,
				OK:       false,
				Message:  fmt.Sprintf("script %s not found: %v", cmd[1], err),
				HowToFix: "Run slicemgr from the backend's directory or configure an absolute script path.",
			}
		}
	}
	return CheckResult{Name: name, OK: true, Message: fmt.Sprintf("%s (%s)", cmd, path)}
}

// checkScratch verifies that a document can be created and removed in dir.
func checkScratch(dir string) CheckResult {
	const name = "scratch directory"
	fix := fmt.Sprintf("Ensure %s is writable or set scratch_dir / SLICEMGR_SCRATCH_DIR.", dir)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return CheckResult{Name: name, OK: false, Message: fmt.Sprintf("cannot create %s: %v", dir, err), HowToFix: fix}
	}
	probe := filepath.Join(dir, ".doctor-"+uuid.NewString())
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return CheckResult{Name: name, OK: false, Message: fmt.Sprintf("cannot write to %s: %v", dir, err), HowToFix: fix}
	}
	if err := os.Remove(probe); err != nil {
		return CheckResult{Name: name, OK: false, Message: fmt.Sprintf("cannot remove %s: %v", probe, err), HowToFix: fix}
	}
	return CheckResult{Name: name, OK: true, Message: fmt.Sprintf("%s is writable", dir)}
}

// checkXDGWrite verifies that slicemgr can create its XDG directories.
func checkXDGWrite(dirs xdg.Dirs) CheckResult {
	const name = "XDG directory access"
	if err := dirs.EnsureDirs(); err != nil {
		return CheckResult{
			Name:     name,
			OK:       false,
			Message:  fmt.Sprintf("cannot create slicemgr directories: %v", err),
			HowToFix: "Check that your home directory is writable and you have sufficient disk space.",
		}
	}
	return CheckResult{
		Name:    name,
		OK:      true,
		Message: fmt.Sprintf("XDG dirs ready (config=%s state=%s)", dirs.Config, dirs.State),
	}
}

func isScript(arg string) bool {
	switch filepath.Ext(arg) {
	case ".sh", ".py", ".bash":
		return true
	}
	return false
}

// installHint returns a human-friendly install hint for a known binary.
func installHint(bin string) string {
	hints := map[string]string{
		"python3": "sudo apt install python3",
		"bash":    "sudo apt install bash",
	}
	if hint, ok := hints[bin]; ok {
		return hint
	}
	return fmt.Sprintf("Install %q and ensure it is on your PATH.", bin)
}
