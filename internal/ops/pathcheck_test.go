package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesterapp/lester/internal/config"
	"github.com/lesterapp/lester/internal/errors"
)

func TestCheckOpLogPath_Rejects(t *testing.T) {
	syncDir := withSyncDir(t)
	cfg := config.DefaultConfig()
	nested := filepath.Join(syncDir, "phone")
	require.NoError(t, os.MkdirAll(nested, 0700))

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"parent traversal", "../laptop.jsonl"},
		{"traversal back into sync", syncDir + "/../sync/laptop.jsonl"},
		{"wrong extension", filepath.Join(syncDir, "laptop.json")},
		{"outside sync dir", filepath.Join(t.TempDir(), "laptop.jsonl")},
		{"subdirectory of sync dir", filepath.Join(nested, "laptop.jsonl")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checkOpLogPath(tc.path, false, cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestCheckOpLogPath_SyncDirAndAllowedPaths(t *testing.T) {
	syncDir := withSyncDir(t)
	extra := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{extra, "relative/ignored"}

	assert.NoError(t, checkOpLogPath(filepath.Join(syncDir, "laptop.jsonl"), false, cfg))
	assert.NoError(t, checkOpLogPath(filepath.Join(extra, "usb.jsonl"), false, cfg))

	// Reading requires the file to exist.
	err := checkOpLogPath(filepath.Join(extra, "usb.jsonl"), true, cfg)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
	writeOpLog(t, extra, "usb.jsonl", "")
	assert.NoError(t, checkOpLogPath(filepath.Join(extra, "usb.jsonl"), true, cfg))
}

func TestCheckOpLogPath_AllowUnsafePaths(t *testing.T) {
	withSyncDir(t)
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	anywhere := t.TempDir()

	assert.NoError(t, checkOpLogPath(filepath.Join(anywhere, "laptop.jsonl"), false, cfg))

	// Extension and traversal rules still apply.
	assert.Error(t, checkOpLogPath(filepath.Join(anywhere, "laptop.txt"), false, cfg))
	assert.Error(t, checkOpLogPath(anywhere+"/../laptop.jsonl", false, cfg))
}

func TestCheckOpLogPath_Symlinks(t *testing.T) {
	syncDir := withSyncDir(t)
	outside := t.TempDir()
	target := writeOpLog(t, outside, "real.jsonl", "")

	link := filepath.Join(syncDir, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	for _, cfg := range []*config.Config{
		config.DefaultConfig(),
		{AllowUnsafePaths: true},
	} {
		assert.Error(t, checkOpLogPath(link, true, cfg), "read through symlink, unsafe=%v", cfg.AllowUnsafePaths)
		assert.Error(t, checkOpLogPath(link, false, cfg), "write through symlink, unsafe=%v", cfg.AllowUnsafePaths)
	}
}

func TestCheckOpLogPath_SymlinkedRootResolved(t *testing.T) {
	withSyncDir(t)
	target := t.TempDir()
	linkedRoot := filepath.Join(t.TempDir(), "exports")
	if err := os.Symlink(target, linkedRoot); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{linkedRoot}
	assert.NoError(t, checkOpLogPath(filepath.Join(resolved, "laptop.jsonl"), false, cfg))
}
