// Package fileutil holds the filesystem primitives behind durable index
// writes: parent directory creation, atomic replace, and advisory locks.
package fileutil

import (
	"os"
	"path/filepath"
)

// EnsureParentDir creates parent directories for the given path if they
// do not exist.
func EnsureParentDir(filePath string) error {
	return os.MkdirAll(filepath.Dir(filePath), 0755)
}

// ReplaceAtomically renames tempPath over targetPath. When the rename
// fails (some filesystems refuse to replace), it falls back to
// remove-then-rename.
func ReplaceAtomically(tempPath, targetPath string) error {
	if err := os.Rename(tempPath, targetPath); err == nil {
		return nil
	}

	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	return os.Rename(tempPath, targetPath)
}
