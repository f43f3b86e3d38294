package fsys

import (
	"errors"
	"io/fs"
	"os"
)

// OS implements the filesystem operations books need against the real
// operating system.
type OS struct{}

// Exists reports whether anything, including a dangling symlink, is at path.
func (OS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// IsSymlink reports whether path is a symbolic link. A missing path is not
// an error.
func (OS) IsSymlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode()&fs.ModeSymlink != 0, nil
}

// MkdirAll creates path and any missing parents. An existing directory is
// not an error.
func (OS) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

// Symlink creates path as a symbolic link to target.
func (OS) Symlink(target, path string) error {
	return os.Symlink(target, path)
}

// Readlink returns the target of the symbolic link at path.
func (OS) Readlink(path string) (string, error) {
	return os.Readlink(path)
}
