// Package fatal implements the fail-closed termination path shared by the
// confinement primitives. Security-relevant failures must not be recoverable:
// the process prints a single diagnostic line and exits, so no caller can
// continue in a half-confined state.
package fatal

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Dief prints one diagnostic line to the error stream and terminates the
// process with a non-zero status. It never returns in production; only
// MockDie can intercept it, and only tests may use that.
func Dief(format string, args ...interface{}) {
	logrus.Debugf("fatal: "+format, args...)
	fmt.Fprintf(stderr, format+"\n", args...)
	exit(1)
}

// Check terminates via Dief when err is non-nil, prefixing the diagnostic
// with msg. A nil err is a no-op.
func Check(err error, msg string) {
	if err != nil {
		Dief("%s: %v", msg, err)
	}
}

// MockDie redirects the diagnostic stream and replaces the exit function,
// returning a restore callback. For use in tests only; the replacement exit
// function is expected to panic so that control does not continue past a
// fatal condition.
func MockDie(w io.Writer, exitFn func(int)) (restore func()) {
	oldStderr, oldExit := stderr, exit
	stderr, exit = w, exitFn
	return func() {
		stderr, exit = oldStderr, oldExit
	}
}
