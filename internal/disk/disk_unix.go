//go:build unix

package disk

import (
	"errors"

	"golang.org/x/sys/unix"
)

// GetUsage returns free and total bytes for the filesystem holding path
func GetUsage(path string) (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, err
	}
	bsize := int64(stat.Bsize)
	return Usage{
		FreeBytes:  int64(stat.Bavail) * bsize,
		TotalBytes: int64(stat.Blocks) * bsize,
	}, nil
}

// Common NFS errors: EIO, ESTALE, ENXIO
func isStaleError(err error) bool {
	return errors.Is(err, unix.EIO) || errors.Is(err, unix.ESTALE) || errors.Is(err, unix.ENXIO)
}
