package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lesterapp/lester/internal/config"
	"github.com/lesterapp/lester/internal/errors"
)

// OpLogExt is the required extension for op log files.
const OpLogExt = ".jsonl"

// SyncDir returns the default directory for op log files (<base>/sync).
func SyncDir() (string, error) {
	base, err := config.BaseDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to resolve base directory: %w", err))
	}
	return filepath.Join(base, "sync"), nil
}

// checkOpLogPath vets an op log path before it is opened. The path must be a
// .jsonl file with no ".." component, sitting directly in the sync directory
// or one of cfg.AllowedPaths, and neither it nor that directory may be a
// symlink. A file directly inside a vetted directory has no intermediate
// component left to swap. AllowUnsafePaths drops only the directory rule.
// When mustExist is set a missing file is NOT_FOUND.
func checkOpLogPath(path string, mustExist bool, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("op log path is required")
	}
	if slices.Contains(strings.FieldsFunc(path, isPathSep), "..") {
		return errors.NewInvalidRequest("op log path must not contain ..")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid op log path: %v", err))
	}
	if filepath.Ext(abs) != OpLogExt {
		return errors.NewInvalidRequest("op log path must end in " + OpLogExt)
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		roots, err := opLogRoots(cfg)
		if err != nil {
			return err
		}
		dir := filepath.Dir(abs)
		if !slices.Contains(roots, dir) {
			return errors.NewInvalidRequest(fmt.Sprintf("op log must sit directly in one of %v", roots))
		}
		if isSymlink(dir) {
			return errors.NewInvalidRequest("op log directory must not be a symlink")
		}
	}

	if mustExist {
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			return errors.NewNotFound("op log", path)
		}
	}
	if isSymlink(abs) {
		return errors.NewInvalidRequest("op log path is a symlink: " + path)
	}
	return nil
}

// opLogRoots lists the directories op logs may live in: the sync directory and
// every absolute entry of cfg.AllowedPaths, symlinked roots resolved.
func opLogRoots(cfg *config.Config) ([]string, error) {
	syncDir, err := SyncDir()
	if err != nil {
		return nil, err
	}
	candidates := []string{syncDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				candidates = append(candidates, p)
			}
		}
	}

	roots := make([]string, 0, len(candidates))
	for _, c := range candidates {
		root, err := filepath.Abs(c)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path %q: %v", c, err))
		}
		if isSymlink(root) {
			if root, err = filepath.EvalSymlinks(root); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve allowed path %q: %v", c, err))
			}
		}
		roots = append(roots, root)
	}
	return roots, nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// isPathSep accepts '/' on every platform as well as the native separator.
func isPathSep(r rune) bool {
	return r == '/' || r == filepath.Separator
}
