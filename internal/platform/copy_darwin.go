//go:build darwin

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// copyAccelerated tries clonefile, the only accelerated whole-file copy
// on macOS. Clonefile refuses to replace an existing destination, so any
// stale file is removed first.
func copyAccelerated(srcPath, dstPath string, size int64) (int64, CopyMethod) {
	_ = os.Remove(dstPath)
	if err := unix.Clonefile(srcPath, dstPath, 0); err == nil {
		return size, Reflink
	}
	return 0, WholeFile
}
