package disk

import (
	"os"
	"time"
)

// Usage is a statfs sample of the filesystem containing a path
type Usage struct {
	FreeBytes  int64
	TotalBytes int64
}

// UsedPercent returns the percentage of the filesystem in use
func (u Usage) UsedPercent() float64 {
	if u.TotalBytes <= 0 {
		return 0
	}
	return float64(u.TotalBytes-u.FreeBytes) / float64(u.TotalBytes) * 100.0
}

// FreePercent returns the percentage of the filesystem still available
func (u Usage) FreePercent() float64 {
	if u.TotalBytes <= 0 {
		return 0
	}
	return 100.0 - u.UsedPercent()
}

// IsNFSStale checks if a path is on a stale NFS mount by attempting a quick stat
// with timeout. Returns true if the stat times out or fails with NFS-specific errors.
func IsNFSStale(path string, timeout time.Duration) bool {
	done := make(chan error, 1)

	go func() {
		_, err := os.Stat(path)
		done <- err
	}()

	select {
	case err := <-done:
		return err != nil && (os.IsTimeout(err) || isStaleError(err))
	case <-time.After(timeout):
		// stat hung, likely a dead server
		return true
	}
}
