package linux

import (
	"os"

	"golang.org/x/sys/unix"
)

// Exec wraps [unix.Exec].
func Exec(cmd string, args []string, env []string) error {
	err := retryOnEINTR(func() error {
		return unix.Exec(cmd, args, env)
	})
	if err != nil {
		return &os.PathError{Op: "exec", Path: cmd, Err: err}
	}
	return nil
}

// Open wraps [unix.Open].
func Open(path string, mode int, perm uint32) (fd int, err error) {
	fd, err = retryOnEINTR2(func() (int, error) {
		return unix.Open(path, mode, perm)
	})
	if err != nil {
		return -1, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return fd, nil
}

// Openat wraps [unix.Openat].
func Openat(dirfd int, path string, mode int, perm uint32) (fd int, err error) {
	fd, err = retryOnEINTR2(func() (int, error) {
		return unix.Openat(dirfd, path, mode, perm)
	})
	if err != nil {
		return -1, &os.PathError{Op: "openat", Path: path, Err: err}
	}
	return fd, nil
}

// Mkdirat wraps [unix.Mkdirat].
func Mkdirat(dirfd int, path string, mode uint32) error {
	err := retryOnEINTR(func() error {
		return unix.Mkdirat(dirfd, path, mode)
	})
	if err != nil {
		return &os.PathError{Op: "mkdirat", Path: path, Err: err}
	}
	return nil
}

// Flock wraps [unix.Flock].
func Flock(fd int, how int) error {
	err := retryOnEINTR(func() error {
		return unix.Flock(fd, how)
	})
	return os.NewSyscallError("flock", err)
}

// Write wraps [unix.Write].
func Write(fd int, p []byte) (n int, err error) {
	n, err = retryOnEINTR2(func() (int, error) {
		return unix.Write(fd, p)
	})
	return n, os.NewSyscallError("write", err)
}
