package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestEnsureWritableDir_Creates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "frames")
	if err := EnsureWritableDir(dir); err != nil {
		t.Fatalf("EnsureWritableDir() error: %v", err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("expected dir created: %v", err)
	}
}

func TestEnsureWritableDir_RejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if err := EnsureWritableDir(path); err == nil {
		t.Fatalf("expected error for regular file")
	}
}

func TestEnsureWritableDir_ReadOnly(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	dir := filepath.Join(t.TempDir(), "ro")
	if err := os.Mkdir(dir, 0o555); err != nil {
		t.Fatalf("Mkdir() error: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
	if err := EnsureWritableDir(dir); err == nil {
		t.Fatalf("expected not writable error")
	}
}

func TestEnsureWritableFileDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "output.json")
	if err := EnsureWritableFileDir(path); err != nil {
		t.Fatalf("EnsureWritableFileDir() error: %v", err)
	}
}
