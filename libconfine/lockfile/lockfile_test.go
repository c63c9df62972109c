package lockfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/snapcore/confine/libconfine/fatal/fataltest"
)

func TestLockPaths(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	global := m.Acquire("")
	defer global.Release()
	if got, want := global.Path(), filepath.Join(dir, ".lock"); got != want {
		t.Fatalf("global lock path = %q, want %q", got, want)
	}

	scoped := m.Acquire("pkg")
	defer scoped.Release()
	if got, want := scoped.Path(), filepath.Join(dir, "pkg.lock"); got != want {
		t.Fatalf("scoped lock path = %q, want %q", got, want)
	}
}

func TestDistinctScopesDoNotBlock(t *testing.T) {
	m := NewManager(t.TempDir())
	// A short timeout turns any unexpected blocking into a quick failure.
	m.SetTimeout(250 * time.Millisecond)

	first := m.Acquire("one")
	defer first.Release()
	second := m.Acquire("two")
	defer second.Release()
}

func TestSameScopeBlocksUntilReleased(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	holder := m.Acquire("pkg")
	const holdFor = 100 * time.Millisecond
	go func() {
		time.Sleep(holdFor)
		holder.Release()
	}()

	// flock contention is per open file description, so a second
	// acquisition from the same process exercises the same blocking path
	// a second process would.
	start := time.Now()
	waiter := m.Acquire("pkg")
	defer waiter.Release()
	if elapsed := time.Since(start); elapsed < holdFor {
		t.Fatalf("second acquisition returned after %v, before the holder released", elapsed)
	}
}

func TestWatchdogExpiryIsFatal(t *testing.T) {
	dir := t.TempDir()

	// Hold the scoped lock on a separate file description so that the
	// manager's acquisition genuinely blocks.
	path := filepath.Join(dir, "pkg.lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		t.Fatal(err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:errcheck

	m := NewManager(dir)
	m.SetTimeout(50 * time.Millisecond)
	diag, died := fataltest.Capture(t, func() {
		m.Acquire("pkg")
	})
	if !died {
		t.Fatal("acquisition survived watchdog expiry")
	}
	if !strings.Contains(diag, "timeout expired") {
		t.Fatalf("diagnostic %q does not name the watchdog", diag)
	}
	if !strings.Contains(diag, path) {
		t.Fatalf("diagnostic %q does not name the lock file", diag)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	m := NewManager(t.TempDir())
	m.SetTimeout(250 * time.Millisecond)

	l := m.Acquire("pkg")
	l.Release()
	l = m.Acquire("pkg")
	l.Release()
}
