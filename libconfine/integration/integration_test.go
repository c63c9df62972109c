// Package integration exercises the full launch sequence across the
// confinement primitives, the way the launcher drives them.
package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/snapcore/confine/libconfine/cgroups"
	"github.com/snapcore/confine/libconfine/lockfile"
)

func TestLaunchSequence(t *testing.T) {
	lockDir := t.TempDir()
	trackRoot := t.TempDir()

	// Global lock first, scoped lock second, always in that order.
	locks := lockfile.NewManager(lockDir)
	global := locks.Acquire("")
	scoped := locks.Acquire("pkg")

	// A real process stands in for the launched application.
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	h := cgroups.LegacyHierarchy(trackRoot)
	tag := cgroups.SecurityTag("pkg")
	h.CreateAndJoin(trackRoot, tag, cmd.Process.Pid)

	if !h.Occupied("pkg") {
		t.Fatal("application not reported as occupied while its pid is tracked")
	}

	if err := cmd.Process.Kill(); err != nil {
		t.Fatal(err)
	}
	_ = cmd.Wait()
	// On cgroupfs the kernel drops the exited pid from the membership file;
	// the plain-directory fixture has to do it by hand.
	if err := os.WriteFile(filepath.Join(trackRoot, tag, "tasks"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if h.Occupied("pkg") {
		t.Fatal("application still reported as occupied after its pid exited")
	}

	// Scoped before global on the way out.
	scoped.Release()
	global.Release()
}
