//go:build !unix

package fsutil

import (
	"os"
)

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".dashtrack-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
