package sys

import (
	"golang.org/x/sys/unix"

	"github.com/snapcore/confine/internal/linux"
)

// Flags for opening directories that must not be followed through symlinks.
// O_PATH is enough for use as a dirfd in *at syscalls and avoids granting
// read access we do not need.
const dirFlags = unix.O_PATH | unix.O_DIRECTORY | unix.O_NOFOLLOW | unix.O_CLOEXEC

// OpenDirectory opens path as a path-only, directory-only, no-follow,
// close-on-exec file descriptor.
func OpenDirectory(path string) (int, error) {
	return linux.Open(path, dirFlags, 0)
}

// OpenatDirectory opens name under dirfd with the same discipline as
// OpenDirectory.
func OpenatDirectory(dirfd int, name string) (int, error) {
	return linux.Openat(dirfd, name, dirFlags, 0)
}
