//go:build !(aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris)
// +build !aix,!darwin,!dragonfly,!freebsd,!linux,!netbsd,!openbsd,!solaris

package block

import "github.com/PriyanshC/virtual-file-system/backend"

// fsync flushes storage's buffered writes to stable storage using the
// portable os.File Sync method. Storage that exposes no *os.File is
// left as it is.
func fsync(storage backend.Storage) error {
	osFile, err := storage.Sys()
	if err != nil {
		return nil
	}
	return osFile.Sync()
}
