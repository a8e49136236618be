package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// deviceFile holds this installation's sync device id.
const deviceFile = "device_id"

// DeviceID returns the device id stored in baseDir, creating one on first use.
func DeviceID(baseDir string) (uuid.UUID, error) {
	path := filepath.Join(baseDir, deviceFile)
	data, err := os.ReadFile(path)
	if err == nil {
		id, perr := uuid.Parse(strings.TrimSpace(string(data)))
		if perr != nil {
			return uuid.Nil, fmt.Errorf("corrupt %s: %w", path, perr)
		}
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return uuid.Nil, err
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0600); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
