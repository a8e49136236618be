//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/lesterapp/lester/internal/errors"
)

const noFollow = syscall.O_NOFOLLOW | syscall.O_CLOEXEC

// createOpLogTemp creates the temp file an export is written to before rename.
// The final component must not be a symlink; checkOpLogPath covers the parent.
func createOpLogTemp(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_CREAT|syscall.O_WRONLY|syscall.O_TRUNC|noFollow, 0600)
	if err != nil {
		return nil, opLogOpenError(path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openOpLog opens an op log for reading without following symlinks.
func openOpLog(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|noFollow, 0)
	if err != nil {
		return nil, opLogOpenError(path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}

func opLogOpenError(path string, err error) error {
	switch {
	case stderrors.Is(err, syscall.ELOOP):
		return errors.NewInvalidRequest("op log path is a symlink: " + path)
	case stderrors.Is(err, syscall.ENOENT):
		return errors.NewNotFound("op log", path)
	default:
		return err
	}
}
