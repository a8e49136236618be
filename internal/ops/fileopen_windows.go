//go:build windows

package ops

import (
	"os"

	"github.com/lesterapp/lester/internal/errors"
)

// Windows has no O_NOFOLLOW; checkOpLogPath rejects symlinks before we get here.

func createOpLogTemp(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
}

func openOpLog(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewNotFound("op log", path)
	}
	return f, err
}
