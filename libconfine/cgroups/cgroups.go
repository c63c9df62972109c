// Package cgroups implements per-application process-tracking groups on top
// of the kernel cgroup subsystem, tolerant of the v1/v2 duality. The package
// performs no internal locking: callers serialize mutation of a scope by
// holding the matching lockfile lock.
package cgroups

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/snapcore/confine/libconfine/fatal"
)

// DefaultRoot is the canonical cgroup mount point probed for the unified
// hierarchy.
const DefaultRoot = "/sys/fs/cgroup"

const defaultProcSelfCgroup = "/proc/self/cgroup"

// Groups nested deeper than this indicate a runaway hierarchy; traversal
// stops fatally rather than recurse without bound.
const maxTraversalDepth = 32

// Mode says which flavor of the cgroup subsystem a hierarchy uses. It is
// resolved once per process by Probe and then passed around explicitly as
// part of the Hierarchy it was resolved for.
type Mode int

const (
	// ModeUnknown is the zero value; no operation accepts it.
	ModeUnknown Mode = iota
	// ModeLegacy denotes a v1 hierarchy, where pid-tracking groups use the
	// "tasks" membership file.
	ModeLegacy
	// ModeUnified denotes the v2 hierarchy with "cgroup.procs" membership.
	ModeUnified
)

func (m Mode) String() string {
	switch m {
	case ModeLegacy:
		return "v1"
	case ModeUnified:
		return "v2"
	}
	return "unknown"
}

// Hierarchy is a named kernel subtree rooted at a controller mount point.
// Hierarchies are created lazily and never actively removed by this code.
type Hierarchy struct {
	// Mode is the resolved flavor of this subtree.
	Mode Mode
	// Root is the mount point the subtree hangs off.
	Root string

	// procSelfCgroup is the pseudo-file listing this process's own group
	// memberships. A field rather than a constant so tests can point it at
	// a fixture.
	procSelfCgroup string
}

// Probe determines the mode of the cgroup mount at root by reading its
// filesystem magic number. A missing mount point is a legacy/absent host,
// not an error; any other statfs failure is fatal. Probe is meant to run
// once per process; detecting the unified hierarchy logs a warning because
// confinement tracking support under cgroup v2 is partial, a documented
// limitation.
func Probe(root string) *Hierarchy {
	h := &Hierarchy{Mode: ModeLegacy, Root: root, procSelfCgroup: defaultProcSelfCgroup}
	var st unix.Statfs_t
	err := unix.Statfs(root, &st)
	switch {
	case errors.Is(err, unix.ENOENT):
		// No cgroup mount at all. Treated as legacy/absent.
	case err != nil:
		fatal.Dief("cannot statfs %s: %v", root, err)
	case st.Type == unix.CGROUP2_SUPER_MAGIC:
		h.Mode = ModeUnified
		logrus.Warnf("cgroup v2 is used, application tracking support is partial")
	}
	logrus.Debugf("cgroup mode at %s: %s", root, h.Mode)
	return h
}

// LegacyHierarchy returns a v1 hierarchy rooted at path, typically a
// per-controller mount such as the pids controller root on hosts that have
// not migrated to v2.
func LegacyHierarchy(path string) *Hierarchy {
	return &Hierarchy{Mode: ModeLegacy, Root: path, procSelfCgroup: defaultProcSelfCgroup}
}

// IsUnified reports whether the hierarchy is the v2 unified one.
func (h *Hierarchy) IsUnified() bool {
	return h.Mode == ModeUnified
}

// OwnPath returns this process's own group path in the unified hierarchy,
// parsed from the "0::" entry of the process-info pseudo-file. The empty
// string means the process has no unified-hierarchy membership entry, which
// is a valid state on legacy hosts. An unreadable pseudo-file or a "0::"
// entry with an empty path is fatal.
func (h *Hierarchy) OwnPath() string {
	f, err := os.Open(h.procSelfCgroup)
	if err != nil {
		fatal.Dief("cannot open %s: %v", h.procSelfCgroup, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// Entries look like "0::/system.slice/foo.service". Only the
		// hierarchy id 0 entry describes the unified hierarchy; the first
		// one wins.
		path, found := strings.CutPrefix(scanner.Text(), "0::")
		if !found {
			continue
		}
		if path == "" {
			fatal.Dief("unexpected content of group entry 0::")
		}
		return path
	}
	fatal.Check(scanner.Err(), "cannot read "+h.procSelfCgroup)
	return ""
}
