package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SanitizeFilename strips characters that are invalid in file names on
// common filesystems and caps the length.
func SanitizeFilename(name string) string {
	const invalid = `<>:"/\|?*`
	out := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalid, r) {
			return '_'
		}
		return r
	}, name)
	out = strings.TrimSpace(out)
	if len(out) > 255 {
		out = out[:255]
	}
	return out
}

// EnsureDir creates path and any missing parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// AtomicWrite stages the file in a hidden temp name in the same directory,
// syncs it, then renames it over path. A crash mid-write leaves nothing at
// the final path. With overwrite false the write fails when path exists.
func AtomicWrite(path string, overwrite bool, write func(f *os.File) error) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
