package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/colthorp/proximity-cli/internal/core"
)

// FilesystemBackend stores JSON snapshot files on disk.
// Directory layout: ~/.proximity/cache/<name>.json
type FilesystemBackend struct {
	root      string
	writeLock sync.Mutex
}

// NewFilesystemBackend creates a new filesystem-based cache backend.
func NewFilesystemBackend(root string) *FilesystemBackend {
	if root == "" {
		root = core.CacheRoot()
	}
	return &FilesystemBackend{root: root}
}

// Root returns the cache directory.
func (b *FilesystemBackend) Root() string {
	return b.root
}

// Location returns the filesystem path for the named snapshot.
func (b *FilesystemBackend) Location(name string) string {
	return filepath.Join(b.root, name+".json")
}

// Load returns the snapshot bytes, or nil if the file does not exist.
func (b *FilesystemBackend) Load(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(b.Location(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "cache: read %s", name)
	}
	return data, nil
}

// Save persists the snapshot atomically.
func (b *FilesystemBackend) Save(_ context.Context, name string, data []byte) error {
	path := b.Location(name)

	b.writeLock.Lock()
	defer b.writeLock.Unlock()

	if err := os.MkdirAll(b.root, 0755); err != nil {
		return eris.Wrap(err, "cache: create cache dir")
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return eris.Wrapf(err, "cache: write %s", name)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return eris.Wrapf(err, "cache: replace %s", name)
	}
	return nil
}
