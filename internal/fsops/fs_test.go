package fsops

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRecordingFSNeverRemoves(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	fsys := &RecordingFS{}
	if err := fsys.Remove(file); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Errorf("RecordingFS removed %s: %v", file, err)
	}
	if got := fsys.Removals(); len(got) != 1 || got[0] != "rm:"+file {
		t.Errorf("Removals() = %v, expected [rm:%s]", got, file)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if !Exists(OSFS{}, dir) {
		t.Errorf("Exists(%s) = false, expected true", dir)
	}
	if Exists(OSFS{}, filepath.Join(dir, "missing")) {
		t.Error("Exists(missing) = true, expected false")
	}
}

func TestOSFSRemove(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	file := filepath.Join(sub, "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	// non-empty directories are refused, not recursively removed
	if err := (OSFS{}).Remove(sub); err == nil {
		t.Error("Remove on non-empty directory succeeded, expected error")
	}
	if err := (OSFS{}).Remove(file); err != nil {
		t.Errorf("Remove(file) failed: %v", err)
	}
	if err := (OSFS{}).Remove(sub); err != nil {
		t.Errorf("Remove(empty dir) failed: %v", err)
	}
}
