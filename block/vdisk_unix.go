//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build aix darwin dragonfly freebsd linux netbsd openbsd solaris

package block

import (
	"golang.org/x/sys/unix"

	"github.com/PriyanshC/virtual-file-system/backend"
)

// fsync flushes storage's buffered writes to stable storage. On unix it
// uses fdatasync via the underlying file descriptor when one is
// available; otherwise it calls the storage's own Sync method if it has
// one, and does nothing if it does not.
func fsync(storage backend.Storage) error {
	osFile, err := storage.Sys()
	if err != nil {
		if f, ok := storage.(interface{ Sync() error }); ok {
			return f.Sync()
		}
		return nil
	}
	return unix.Fdatasync(int(osFile.Fd()))
}
