// Package fataltest lets tests observe fatal terminations in-process. The
// production path exits; the mocked path panics with a private sentinel that
// Capture recovers.
package fataltest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/snapcore/confine/libconfine/fatal"
)

type sentinel struct{}

// Capture runs fn with the fatal path mocked and reports the diagnostic that
// was printed and whether fn terminated fatally. Panics other than the fatal
// sentinel propagate.
func Capture(t *testing.T, fn func()) (diag string, died bool) {
	t.Helper()
	var buf bytes.Buffer
	restore := fatal.MockDie(&buf, func(int) { panic(sentinel{}) })
	defer restore()
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(sentinel); !ok {
					panic(r)
				}
				died = true
			}
		}()
		fn()
	}()
	return strings.TrimSuffix(buf.String(), "\n"), died
}
