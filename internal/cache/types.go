// Package cache provides the durable key/value stores behind the proximity resolvers.
//
// # Overview
//
// Each store is a named mapping (geocode, amenity, distance) that is loaded once
// when it is opened and written back as a complete snapshot after every
// mutation. There is no append log: a snapshot is always the whole mapping,
// replaced atomically by the backend.
//
// # Snapshot Format
//
// Snapshots are JSON documents:
//
//	{
//	  "version": 1,
//	  "entries": {"<key>": <value>, ...}
//	}
//
// A bare JSON object of entries (no version wrapper) is also accepted when
// loading, and rewritten in the versioned form on the next flush.
//
// # Backends
//
// FilesystemBackend keeps one <name>.json file per store under the cache root.
// SQLiteBackend and PostgresBackend keep one row per store in cache_snapshots.
// MemoryBackend is used by tests.
//
// A snapshot that exists but cannot be decoded is reported as ErrCorrupt and is
// never replaced with an empty mapping.
package cache

import (
	"context"

	"github.com/rotisserie/eris"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

// ErrCorrupt is returned when a persisted snapshot exists but cannot be decoded.
var ErrCorrupt = eris.New("cache: snapshot is corrupt")

// Backend is the interface for snapshot storage backends.
// The default implementation is FilesystemBackend which stores JSON files on disk.
type Backend interface {
	// Load returns the snapshot stored under name, or nil when none exists.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save replaces the snapshot stored under name as one atomic unit.
	Save(ctx context.Context, name string, data []byte) error

	// Location describes where the snapshot lives (for logs and stats).
	Location(name string) string
}

// snapshotPayload is the JSON structure stored by every backend.
type snapshotPayload[V any] struct {
	Version int          `json:"version"`
	Entries map[string]V `json:"entries"`
}
