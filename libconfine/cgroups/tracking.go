package cgroups

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/moby/sys/mountinfo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/snapcore/confine/internal/linux"
	"github.com/snapcore/confine/internal/sys"
	"github.com/snapcore/confine/libconfine/fatal"
	"github.com/snapcore/confine/libconfine/privs"
)

// groupPrefix is the common prefix of tracking-group names created for an
// application instance, e.g. "confine.firefox" or a systemd-style
// "confine.firefox.1234-1234.scope".
const groupPrefix = "confine."

// SecurityTag returns the tracking-group name for an application.
func SecurityTag(name string) string {
	return groupPrefix + name
}

// membershipFile names the control file that pids are written into to join a
// group: "tasks" for legacy pid-tracking groups, "cgroup.procs" for
// unified-style groups.
func (h *Hierarchy) membershipFile() string {
	if h.Mode == ModeUnified {
		return "cgroup.procs"
	}
	return "tasks"
}

// CreateAndJoin creates the tracking group name under parent, then writes
// pid into its membership control file. The group directory ends up owned
// by root:root regardless of the caller's ambient identity: the effective
// gid is temporarily equalized to root around the mkdir, because a
// setuid-root but not setgid-root caller would otherwise leave the invoking
// user's group on the directory.
//
// An already existing group is fine (EEXIST is absorbed); every other
// failure, including a short write of the pid, is fatal. Callers must hold
// the scoped lock for the application while calling this.
func (h *Hierarchy) CreateAndJoin(parent, name string, pid int) {
	parentFd, err := sys.OpenDirectory(parent)
	if err != nil {
		fatal.Dief("cannot open cgroup hierarchy %s: %v", parent, err)
	}
	defer unix.Close(parentFd)

	func() {
		restore := privs.RaiseRootGroup()
		defer restore()
		if err := linux.Mkdirat(parentFd, name, 0o755); err != nil && !errors.Is(err, unix.EEXIST) {
			fatal.Dief("cannot create tracking group %s/%s: %v", parent, name, err)
		}
	}()

	dirFd, err := sys.OpenatDirectory(parentFd, name)
	if err != nil {
		fatal.Dief("cannot open tracking group %s/%s: %v", parent, name, err)
	}
	defer unix.Close(dirFd)

	// On cgroupfs the membership file always exists and O_CREAT is inert;
	// it only matters on plain directories, which the tests stage.
	fd, err := linux.Openat(dirFd, h.membershipFile(), unix.O_WRONLY|unix.O_CREAT|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0o644)
	if err != nil {
		fatal.Dief("cannot open membership file of %s/%s: %v", parent, name, err)
	}
	defer unix.Close(fd)

	buf := []byte(strconv.Itoa(pid))
	n, err := linux.Write(fd, buf)
	if err != nil {
		fatal.Dief("cannot move pid %d to tracking group %s/%s: %v", pid, parent, name, err)
	}
	if n != len(buf) {
		// Kernel control files do not do partial writes; a short write
		// means the pid was not moved and must not be retried.
		fatal.Dief("cannot move pid %d to tracking group %s/%s: short write", pid, parent, name)
	}
	logrus.Debugf("moved pid %d to tracking group %s/%s", pid, parent, name)
}

// Occupied reports whether any process is currently tracked for the
// application called name. The answer is explicitly racy: a tracked pid may
// exit concurrently and an emptied group may not have been garbage collected
// yet. Callers bound the race by holding the scoped lock; a negative answer
// is still not a strict liveness guarantee. This is a deliberate heuristic,
// relied upon to permit relaunches, and must stay one.
func (h *Hierarchy) Occupied(name string) bool {
	if h.Mode == ModeUnified {
		return h.unifiedTracking(name)
	}
	return h.legacyOccupied(name)
}

// legacyOccupied checks the membership file of the group named after the
// application in a v1 tracking hierarchy. A missing group means nothing is
// tracked.
func (h *Hierarchy) legacyOccupied(name string) bool {
	dir, err := securejoin.SecureJoin(h.Root, SecurityTag(name))
	if err != nil {
		fatal.Dief("cannot resolve tracking group for %q: %v", name, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, h.membershipFile()))
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	fatal.Check(err, "cannot read tracking group membership")
	return len(strings.Fields(string(data))) > 0
}

// unifiedTracking walks the unified hierarchy looking for any group
// belonging to the application, skipping this process's own group. A group
// directory existing at all counts as tracking; the kernel removes empty
// groups lazily and the heuristic leans on that.
func (h *Hierarchy) unifiedTracking(name string) bool {
	own := h.OwnPath()
	if own == "" {
		fatal.Dief("cannot obtain own cgroup v2 group path")
	}
	if _, err := os.Stat(h.Root); errors.Is(err, os.ErrNotExist) {
		// The hierarchy is not mounted here at all, so nothing is tracked.
		return false
	}
	prefix := SecurityTag(name) + "."
	return h.walkTracking(h.Root, "/", prefix, own, 0)
}

func (h *Hierarchy) walkTracking(dir, rel, prefix, own string, depth int) bool {
	if depth >= maxTraversalDepth {
		fatal.Dief("cannot traverse cgroups hierarchy deeper than %d levels", maxTraversalDepth)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		fatal.Dief("cannot open directory entry %q: %v", filepath.Base(dir), err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		childRel := path.Join(rel, e.Name())
		if strings.HasPrefix(e.Name(), prefix) && childRel != own {
			logrus.Debugf("found tracking group %s", childRel)
			return true
		}
		if h.walkTracking(filepath.Join(dir, e.Name()), childRel, prefix, own, depth+1) {
			return true
		}
	}
	return false
}

// TrackingHierarchy returns the private, controller-less v1 hierarchy
// mounted under runDir. It exists so that pid tracking keeps working on
// hosts whose real hierarchy has fully migrated to v2, where the single v2
// instance is owned by the service manager and must not be touched.
func TrackingHierarchy(runDir string) *Hierarchy {
	return &Hierarchy{
		Mode:           ModeLegacy,
		Root:           filepath.Join(runDir, "cgroup"),
		procSelfCgroup: defaultProcSelfCgroup,
	}
}

// EnsureMounted idempotently mounts the private tracking hierarchy at the
// hierarchy root. An already present mount, including one that appeared
// concurrently (EBUSY), is absorbed; everything else is fatal.
func (h *Hierarchy) EnsureMounted() {
	mounted, err := mountinfo.Mounted(h.Root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fatal.Dief("cannot inspect mount point %s: %v", h.Root, err)
	}
	if mounted {
		return
	}
	if err := os.MkdirAll(h.Root, 0o755); err != nil {
		fatal.Dief("cannot create mount point %s: %v", h.Root, err)
	}
	err = unix.Mount("none", h.Root, "cgroup", 0, "none,name=confine")
	if err != nil && !errors.Is(err, unix.EBUSY) {
		fatal.Dief("cannot mount tracking cgroup hierarchy at %s: %v", h.Root, err)
	}
	logrus.Debugf("mounted tracking cgroup hierarchy at %s", h.Root)
}
