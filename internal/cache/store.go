package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Store is a named key/value mapping persisted as a whole snapshot.
//
// The mapping is loaded once by Open. Write and Delete persist the complete
// mapping before returning; Merge only mutates memory and is followed by an
// explicit Flush. Values handed out by Get are shared with the store and must
// not be mutated by the caller; use Merge instead.
type Store[V any] struct {
	name    string
	backend Backend

	mu      sync.RWMutex
	entries map[string]V

	// flushMu orders snapshot encoding with the backend write so a later
	// snapshot is never overwritten by an earlier one.
	flushMu sync.Mutex
}

// Open loads the named snapshot from backend. A missing snapshot yields an
// empty store; an undecodable one yields ErrCorrupt.
func Open[V any](ctx context.Context, backend Backend, name string) (*Store[V], error) {
	data, err := backend.Load(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "cache: load %s", name)
	}

	entries := make(map[string]V)
	if data != nil {
		entries, err = decodeSnapshot[V](data)
		if err != nil {
			return nil, eris.Wrapf(ErrCorrupt, "cache: decode %s at %s: %v", name, backend.Location(name), err)
		}
	}

	zap.L().Debug("cache: store opened",
		zap.String("store", name),
		zap.String("location", backend.Location(name)),
		zap.Int("entries", len(entries)),
	)
	return &Store[V]{name: name, backend: backend, entries: entries}, nil
}

func decodeSnapshot[V any](data []byte) (map[string]V, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, eris.New("snapshot is null")
	}

	// A legacy map may hold an entry keyed "version"; the versioned form
	// always carries both fields.
	_, hasVersion := probe["version"]
	_, hasEntries := probe["entries"]
	if hasVersion && hasEntries {
		var payload snapshotPayload[V]
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.Version > SnapshotVersion {
			return nil, eris.Errorf("unsupported snapshot version %d", payload.Version)
		}
		if payload.Entries == nil {
			payload.Entries = make(map[string]V)
		}
		return payload.Entries, nil
	}

	// Legacy snapshots are a bare object of entries.
	entries := make(map[string]V, len(probe))
	for k, raw := range probe {
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, eris.Wrapf(err, "entry %q", k)
		}
		entries[k] = v
	}
	return entries, nil
}

// Name returns the snapshot name.
func (s *Store[V]) Name() string {
	return s.name
}

// Location describes where the snapshot is persisted.
func (s *Store[V]) Location() string {
	return s.backend.Location(s.name)
}

// Get returns the value for key and whether it was present.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Has reports whether key is present.
func (s *Store[V]) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// Len returns the number of entries.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns all keys in sorted order.
func (s *Store[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Write sets key to v and persists the whole mapping before returning.
func (s *Store[V]) Write(ctx context.Context, key string, v V) error {
	s.mu.Lock()
	s.entries[key] = v
	s.mu.Unlock()
	return s.Flush(ctx)
}

// Merge replaces the value for key with fn(current, present) in memory only.
// The change becomes durable on the next Flush, Write or Delete.
func (s *Store[V]) Merge(key string, fn func(current V, present bool) V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[key]
	s.entries[key] = fn(cur, ok)
}

// Delete removes key and persists the mapping. Deleting an absent key is a no-op.
func (s *Store[V]) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Flush(ctx)
}

// Flush writes the complete mapping to the backend.
func (s *Store[V]) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.RLock()
	data, err := json.MarshalIndent(snapshotPayload[V]{Version: SnapshotVersion, Entries: s.entries}, "", "  ")
	n := len(s.entries)
	s.mu.RUnlock()
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", s.name)
	}

	if err := s.backend.Save(ctx, s.name, data); err != nil {
		return eris.Wrapf(err, "cache: save %s", s.name)
	}
	zap.L().Debug("cache: store flushed", zap.String("store", s.name), zap.Int("entries", n))
	return nil
}
