package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func TestStore_OpenEmpty(t *testing.T) {
	backend := NewMemoryBackend()

	s, err := Open[point](context.Background(), backend, "geocode")
	require.NoError(t, err)

	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Has("Gdańsk"))
	assert.Equal(t, "memory://geocode", s.Location())
	assert.Zero(t, backend.Saves("geocode"), "opening must not write")
}

func TestStore_WritePersistsBeforeReturn(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	s, err := Open[point](ctx, backend, "geocode")
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "Gdańsk", point{54.35, 18.65}))
	assert.Equal(t, 1, backend.Saves("geocode"))

	var payload snapshotPayload[point]
	require.NoError(t, json.Unmarshal(backend.Snapshot("geocode"), &payload))
	assert.Equal(t, SnapshotVersion, payload.Version)
	assert.Equal(t, point{54.35, 18.65}, payload.Entries["Gdańsk"])

	// A fresh store sees the persisted entry.
	reopened, err := Open[point](ctx, backend, "geocode")
	require.NoError(t, err)
	got, ok := reopened.Get("Gdańsk")
	require.True(t, ok)
	assert.Equal(t, point{54.35, 18.65}, got)
}

func TestStore_MergeIsMemoryOnlyUntilFlush(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	s, err := Open[map[string]int](ctx, backend, "amenity")
	require.NoError(t, err)

	s.Merge("zabka", func(cur map[string]int, present bool) map[string]int {
		assert.False(t, present)
		return map[string]int{"p1": 1}
	})
	s.Merge("zabka", func(cur map[string]int, present bool) map[string]int {
		assert.True(t, present)
		cur["p2"] = 2
		return cur
	})

	assert.Zero(t, backend.Saves("amenity"))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, backend.Saves("amenity"))

	reopened, err := Open[map[string]int](ctx, backend, "amenity")
	require.NoError(t, err)
	got, _ := reopened.Get("zabka")
	assert.Equal(t, map[string]int{"p1": 1, "p2": 2}, got)
}

func TestStore_Delete(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	s, err := Open[int](ctx, backend, "distance")
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, "a", 1))
	require.NoError(t, s.Write(ctx, "b", 2))

	require.NoError(t, s.Delete(ctx, "a"))
	assert.Equal(t, []string{"b"}, s.Keys())
	assert.Equal(t, 3, backend.Saves("distance"))

	// Absent key does not flush
	require.NoError(t, s.Delete(ctx, "missing"))
	assert.Equal(t, 3, backend.Saves("distance"))
}

func TestStore_CorruptSnapshotIsFatal(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"version":1,`},
		{"null", `null`},
		{"array", `[1,2,3]`},
		{"wrong entry type", `{"version":1,"entries":{"a":"not a point"}}`},
		{"future version", `{"version":99,"entries":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewMemoryBackend()
			backend.Seed("geocode", []byte(tt.data))

			_, err := Open[point](context.Background(), backend, "geocode")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
			assert.Equal(t, tt.data, string(backend.Snapshot("geocode")), "corrupt snapshot must be left in place")
		})
	}
}

func TestStore_LegacyBareMap(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Seed("geocode", []byte(`{"Gdańsk":{"lat":54.35,"lng":18.65}}`))
	ctx := context.Background()

	s, err := Open[point](ctx, backend, "geocode")
	require.NoError(t, err)
	got, ok := s.Get("Gdańsk")
	require.True(t, ok)
	assert.Equal(t, point{54.35, 18.65}, got)

	// Next flush rewrites in the versioned format.
	require.NoError(t, s.Flush(ctx))
	var payload snapshotPayload[point]
	require.NoError(t, json.Unmarshal(backend.Snapshot("geocode"), &payload))
	assert.Equal(t, SnapshotVersion, payload.Version)
	assert.Len(t, payload.Entries, 1)
}

func TestStore_LegacyMapWithVersionEntry(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Seed("geocode", []byte(`{"version":{"lat":1,"lng":2},"Sopot":{"lat":54.44,"lng":18.56}}`))

	s, err := Open[point](context.Background(), backend, "geocode")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	got, ok := s.Get("version")
	require.True(t, ok)
	assert.Equal(t, point{1, 2}, got)
	assert.True(t, s.Has("Sopot"))
}

func TestStore_WriteErrorSurfaces(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	s, err := Open[int](ctx, backend, "distance")
	require.NoError(t, err)

	backend.FailSaves(errors.New("disk full"))
	err = s.Write(ctx, "k", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestStore_ConcurrentWrites(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	s, err := Open[int](ctx, backend, "distance")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Write(ctx, fmt.Sprintf("k%02d", i), i))
		}(i)
	}
	wg.Wait()

	// The last snapshot written contains every entry.
	reopened, err := Open[int](ctx, backend, "distance")
	require.NoError(t, err)
	assert.Equal(t, 20, reopened.Len())
}

func TestStore_FilesystemRoundTrip(t *testing.T) {
	backend := NewFilesystemBackend(t.TempDir())
	ctx := context.Background()

	s, err := Open[point](ctx, backend, "geocode")
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, "Sopot", point{54.44, 18.56}))

	reopened, err := Open[point](ctx, backend, "geocode")
	require.NoError(t, err)
	assert.True(t, reopened.Has("Sopot"))
}
