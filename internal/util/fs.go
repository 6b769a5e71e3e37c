package util

import (
	"fmt"
	"os"
	"path/filepath"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin places a storage-supplied file name inside root. Directory parts
// of name are dropped, so a remote name cannot escape root.
func SafeJoin(root, name string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		base = "unnamed"
	}
	return filepath.Join(root, base)
}
