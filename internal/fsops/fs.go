package fsops

import "os"

// FS abstracts the filesystem calls a sweep makes
// Enables recording fakes in tests to prove the safety floor never deletes
type FS interface {
	Lstat(path string) (os.FileInfo, error)
	ReadDir(path string) ([]os.DirEntry, error)
	Remove(path string) error
}

// Exists reports whether path can be stat'ed without following a final symlink
func Exists(fsys FS, path string) bool {
	_, err := fsys.Lstat(path)
	return err == nil
}
