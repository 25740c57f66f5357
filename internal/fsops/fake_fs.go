package fsops

import (
	"os"
	"strings"
)

// RecordingFS implements FS for testing
// Reads pass through to the real filesystem, removals are recorded and never performed
type RecordingFS struct {
	Calls []string
}

func (f *RecordingFS) Lstat(path string) (os.FileInfo, error) {
	f.Calls = append(f.Calls, "lstat:"+path)
	return os.Lstat(path)
}

func (f *RecordingFS) ReadDir(path string) ([]os.DirEntry, error) {
	f.Calls = append(f.Calls, "readdir:"+path)
	return os.ReadDir(path)
}

func (f *RecordingFS) Remove(path string) error {
	f.Calls = append(f.Calls, "rm:"+path)
	return nil
}

// Removals returns only the recorded remove calls
func (f *RecordingFS) Removals() []string {
	var out []string
	for _, c := range f.Calls {
		if strings.HasPrefix(c, "rm:") {
			out = append(out, c)
		}
	}
	return out
}
