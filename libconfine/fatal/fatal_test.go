package fatal

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDiefPrintsOneLineAndExits(t *testing.T) {
	var buf bytes.Buffer
	var code int
	restore := MockDie(&buf, func(c int) { code = c; panic("exited") })
	defer restore()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("Dief returned")
			}
		}()
		Dief("cannot frob %s: %v", "thing", errors.New("boom"))
	}()

	if code != 1 {
		t.Fatalf("exit status = %d, want 1", code)
	}
	if got, want := buf.String(), "cannot frob thing: boom\n"; got != want {
		t.Fatalf("diagnostic = %q, want %q", got, want)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("more than one diagnostic line: %q", buf.String())
	}
}

func TestCheckNilIsNoop(t *testing.T) {
	restore := MockDie(&bytes.Buffer{}, func(int) { t.Fatal("Check exited on nil error") })
	defer restore()
	Check(nil, "unused")
}

func TestCheckError(t *testing.T) {
	var buf bytes.Buffer
	restore := MockDie(&buf, func(int) { panic("exited") })
	defer restore()

	func() {
		defer func() { _ = recover() }()
		Check(errors.New("boom"), "cannot open lock file")
	}()

	if got, want := buf.String(), "cannot open lock file: boom\n"; got != want {
		t.Fatalf("diagnostic = %q, want %q", got, want)
	}
}
