// Package lockfile implements named, scope-qualified exclusive locks used to
// serialize sandbox mutation across cooperating processes. Locks are plain
// flock(2) advisory locks tied to open-file-table entries: the kernel drops
// them on process death, which is the only crash-recovery mechanism. Every
// blocking acquisition is bracketed by a sanity watchdog; expiry is fatal.
package lockfile

import (
	"os"
	"path/filepath"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/snapcore/confine/internal/linux"
	"github.com/snapcore/confine/libconfine/fatal"
)

// DefaultTimeout bounds a single blocking lock acquisition. A holder that
// keeps a lock longer than this is treated as wedged and the waiter dies
// rather than hang.
const DefaultTimeout = 3 * time.Second

const lockFlags = unix.O_RDWR | unix.O_CREAT | unix.O_NOFOLLOW | unix.O_CLOEXEC

// Manager hands out locks below a fixed lock directory. The zero value is
// not usable; construct with NewManager.
type Manager struct {
	dir     string
	timeout time.Duration
}

// NewManager returns a Manager rooted at dir with the default sanity
// timeout.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, timeout: DefaultTimeout}
}

// SetTimeout overrides the sanity timeout. Intended for tests.
func (m *Manager) SetTimeout(d time.Duration) {
	m.timeout = d
}

// Lock is an acquired exclusive lock. The backing file stays open for the
// lifetime of the lock so that the kernel releases it if the process dies.
type Lock struct {
	path string
	file *os.File
}

// Path returns the lock file path, mainly for diagnostics.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the exclusive lock for the given scope, blocking until it is
// available or the sanity timeout expires. The empty scope denotes the
// global lock. Callers must always take the global lock before any scoped
// lock; the ordering is a documented precondition, not enforced here.
//
// Every failure mode is fatal: lock files that cannot be created, flock
// errors, and watchdog expiry all terminate the process. There is no retry.
func (m *Manager) Acquire(scope string) *Lock {
	path := m.lockPath(scope)
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		fatal.Dief("cannot create lock directory %s: %v", m.dir, err)
	}
	fd, err := linux.Open(path, lockFlags, 0o600)
	if err != nil {
		fatal.Dief("cannot open lock file: %v", err)
	}
	l := &Lock{path: path, file: os.NewFile(uintptr(fd), path)}
	m.flockSanity(l)
	logrus.Debugf("acquired exclusive lock on %s", path)
	return l
}

// Release unlocks and closes the lock. Releasing a lock twice is a caller
// bug and is not guarded against.
func (l *Lock) Release() {
	fatal.Check(linux.Flock(int(l.file.Fd()), unix.LOCK_UN), "cannot release lock")
	fatal.Check(l.file.Close(), "cannot close lock file")
	logrus.Debugf("released lock on %s", l.path)
}

func (m *Manager) lockPath(scope string) string {
	if scope == "" {
		return filepath.Join(m.dir, ".lock")
	}
	path, err := securejoin.SecureJoin(m.dir, scope+".lock")
	if err != nil {
		fatal.Dief("cannot resolve lock file for scope %q: %v", scope, err)
	}
	return path
}

// flockSanity performs the blocking LOCK_EX call with the watchdog armed.
// The flock runs on its own goroutine so that the deadline can be observed;
// when the watchdog fires the goroutine is abandoned, which is fine because
// the process is about to terminate anyway.
//
// A fired watchdog is fatal even when the call nominally returned: the
// caller cannot distinguish "lock acquired late" from "state left
// inconsistent", so both are treated the same way.
func (m *Manager) flockSanity(l *Lock) {
	watchdog := time.NewTimer(m.timeout)
	defer watchdog.Stop()
	done := make(chan error, 1)
	go func() {
		done <- linux.Flock(int(l.file.Fd()), unix.LOCK_EX)
	}()
	select {
	case err := <-done:
		select {
		case <-watchdog.C:
			fatal.Dief("cannot acquire lock on %s: timeout expired", l.path)
		default:
		}
		if err != nil {
			fatal.Dief("cannot acquire lock on %s: %v", l.path, err)
		}
	case <-watchdog.C:
		fatal.Dief("cannot acquire lock on %s: timeout expired", l.path)
	}
}
