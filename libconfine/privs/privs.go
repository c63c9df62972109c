// Package privs implements the privilege controller: permanent, verified
// privilege drop from an elevated setuid/setgid identity, temporary effective
// group manipulation for ownership normalization, and capability-set
// assertions guarding sensitive operations.
package privs

import (
	"github.com/moby/sys/capability"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/snapcore/confine/libconfine/fatal"
)

// DropPermanently irreversibly drops the elevated effective identity back to
// the real identity of the invoking user. It is a no-op for a process that
// was never euid-elevated. Any residual elevation after the transition is
// fatal; the syscalls are verified, not trusted.
//
// Must be called after all irrevocable sandbox setup and before any
// application code runs.
func DropPermanently() {
	ruid := unix.Getuid()
	rgid := unix.Getgid()
	if unix.Geteuid() != 0 {
		return
	}
	// Clearing supplementary groups needs CAP_SETGID, which a setuid-root
	// (but not setgid-root) binary holds. Skip quietly when it is absent.
	if effectiveHas(capability.CAP_SETGID) {
		fatal.Check(unix.Setgroups([]int{rgid}), "cannot drop supplementary groups")
	}
	// Group before user. Once the real uid is in place the process may no
	// longer have the authority to change its group membership.
	fatal.Check(unix.Setresgid(rgid, rgid, rgid), "cannot set group identity")
	fatal.Check(unix.Setresuid(ruid, ruid, ruid), "cannot set user identity")
	if rgid != 0 && (unix.Getgid() == 0 || unix.Getegid() == 0) {
		fatal.Dief("permanently dropping privileges did not work")
	}
	if ruid != 0 && (unix.Getuid() == 0 || unix.Geteuid() == 0) {
		fatal.Dief("permanently dropping privileges did not work")
	}
	logrus.Debugf("permanently dropped privileges to uid=%d gid=%d", ruid, rgid)
}

// RaiseRootGroup temporarily switches the effective gid to root so that
// filesystem objects created in the bracketed region are owned by root:root
// even when the caller is setuid-root but not setgid-root. The returned
// restore function must be called at the end of the region; it verifies the
// switch back. A process that is not euid-root, or whose egid already is
// root, gets a no-op pair.
func RaiseRootGroup() (restore func()) {
	egid := unix.Getegid()
	if unix.Geteuid() != 0 || egid == 0 {
		return func() {}
	}
	// setegid(2) is the libc spelling of setresgid with the real and saved
	// ids left untouched.
	fatal.Check(unix.Setresgid(-1, 0, -1), "cannot raise effective group to root")
	return func() {
		fatal.Check(unix.Setresgid(-1, egid, -1), "cannot restore effective group")
		if unix.Getegid() != egid {
			fatal.Dief("restoring effective group did not work")
		}
	}
}
