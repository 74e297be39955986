package cache

import (
	"context"
	"sync"
)

// MemoryBackend is an in-memory cache backend for testing.
type MemoryBackend struct {
	snapshots map[string][]byte
	saves     map[string]int
	saveErr   error
	mu        sync.RWMutex
}

// NewMemoryBackend creates a new in-memory cache backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		snapshots: make(map[string][]byte),
		saves:     make(map[string]int),
	}
}

// Location returns a dummy path for the named snapshot.
func (b *MemoryBackend) Location(name string) string {
	return "memory://" + name
}

// Load returns a copy of the stored snapshot, or nil if absent.
func (b *MemoryBackend) Load(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneBytes(b.snapshots[name]), nil
}

// Save stores a copy of the snapshot.
func (b *MemoryBackend) Save(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.snapshots[name] = cloneBytes(data)
	b.saves[name]++
	return nil
}

// Saves returns how many times the named snapshot has been saved.
func (b *MemoryBackend) Saves(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.saves[name]
}

// Snapshot returns the raw stored bytes for name (for testing).
func (b *MemoryBackend) Snapshot(name string) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneBytes(b.snapshots[name])
}

// FailSaves makes every subsequent Save return err; nil restores normal behaviour.
func (b *MemoryBackend) FailSaves(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveErr = err
}

// Reset clears all snapshots and counters (for testing).
func (b *MemoryBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = make(map[string][]byte)
	b.saves = make(map[string]int)
	b.saveErr = nil
}

// Seed stores a raw snapshot directly (for testing).
func (b *MemoryBackend) Seed(name string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[name] = cloneBytes(data)
}

func cloneBytes(data []byte) []byte {
	if data == nil {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
