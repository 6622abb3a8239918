package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileExists returns true if a file or directory with the given path exists.
func FileExists(filename string) bool {
	_, err := os.Lstat(filename)
	return err == nil
}

// IsDir returns true if a directory with the given path exists.
func IsDir(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && info.IsDir()
}

// EnsureDir creates dir if it does not exist yet. Only the last path element
// is created; it returns an error satisfying errors.Is(err, fs.ErrNotExist)
// if the parent directory is missing.
func EnsureDir(dir string) (created bool, err error) {
	if IsDir(dir) {
		return false, nil
	}

	err = os.Mkdir(dir, 0755)
	if err != nil {
		if errors.Is(err, fs.ErrExist) && IsDir(dir) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// ExpandHome replaces a leading "~" in path with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !hasHomePrefix(path) {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, path[1:]), nil
}

func hasHomePrefix(path string) bool {
	return len(path) >= 2 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator)
}
