package privs

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

const dropHelperEnv = "CONFINE_TEST_DROP_HELPER"

func TestDropPermanentlyUnprivilegedIsNoop(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("requires an unprivileged process")
	}
	uid, gid := unix.Getuid(), unix.Getgid()
	DropPermanently()
	if unix.Getuid() != uid || unix.Geteuid() != uid {
		t.Fatalf("uid changed by a no-op drop")
	}
	if unix.Getgid() != gid || unix.Getegid() != gid {
		t.Fatalf("gid changed by a no-op drop")
	}
}

// TestDropPermanentlyHelper runs in a re-executed child because the
// transition is irreversible within one process. It fakes the setuid-root
// launcher state (real ids of nobody, effective ids of root) and then drops.
func TestDropPermanentlyHelper(t *testing.T) {
	if os.Getenv(dropHelperEnv) != "1" {
		t.Skip("helper for TestDropPermanentlyAsRoot")
	}
	const nobody = 65534
	if err := unix.Setregid(nobody, 0); err != nil {
		t.Fatalf("cannot stage setgid state: %v", err)
	}
	if err := unix.Setreuid(nobody, 0); err != nil {
		t.Fatalf("cannot stage setuid state: %v", err)
	}

	DropPermanently()

	if unix.Getuid() != nobody || unix.Geteuid() != nobody {
		t.Fatalf("uid/euid = %d/%d, want %d/%d", unix.Getuid(), unix.Geteuid(), nobody, nobody)
	}
	if unix.Getgid() != nobody || unix.Getegid() != nobody {
		t.Fatalf("gid/egid = %d/%d, want %d/%d", unix.Getgid(), unix.Getegid(), nobody, nobody)
	}
	groups, err := unix.Getgroups()
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0] != nobody {
		t.Fatalf("supplementary groups = %v, want [%d]", groups, nobody)
	}
}

func TestDropPermanentlyAsRoot(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
	cmd := exec.Command(os.Args[0], "-test.run", "TestDropPermanentlyHelper", "-test.v")
	cmd.Env = append(os.Environ(), dropHelperEnv+"=1")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("drop helper failed: %v\n%s", err, out)
	}
	if strings.Contains(string(out), "FAIL") {
		t.Fatalf("drop helper failed:\n%s", out)
	}
}

func TestRaiseRootGroupUnprivilegedIsNoop(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("requires an unprivileged process")
	}
	egid := unix.Getegid()
	restore := RaiseRootGroup()
	if unix.Getegid() != egid {
		t.Fatalf("egid changed without privileges")
	}
	restore()
	if unix.Getegid() != egid {
		t.Fatalf("egid changed by restore")
	}
}
