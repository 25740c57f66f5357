package fsops

import "os"

// OSFS implements FS using real os package calls
type OSFS struct{}

func (OSFS) Lstat(path string) (os.FileInfo, error) {
	return os.Lstat(path)
}

func (OSFS) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// Remove unlinks a file or removes an empty directory
func (OSFS) Remove(path string) error {
	return os.Remove(path)
}
