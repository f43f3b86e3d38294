package book

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a declaration that cannot be built into a book.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid book %q: %s", e.Path, e.Reason)
}

// FilesystemError reports a failed filesystem operation on a book's path.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

var (
	errNotSymlink     = errors.New("exists but is not a symbolic link")
	errNotWorkingCopy = errors.New("exists but is not the top of a git working copy")
)
