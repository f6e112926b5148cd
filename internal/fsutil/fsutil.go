// Package fsutil holds pre-run checks on the directories the pipeline writes to.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureWritableDir creates dir if needed and verifies the process may
// create files in it.
func EnsureWritableDir(dir string) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if err := checkWritable(dir); err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	return nil
}

// EnsureWritableFileDir checks the directory that will hold path.
func EnsureWritableFileDir(path string) error {
	return EnsureWritableDir(filepath.Dir(path))
}
