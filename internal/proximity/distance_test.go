package proximity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colthorp/proximity-cli/internal/api"
	"github.com/colthorp/proximity-cli/internal/cache"
	"github.com/colthorp/proximity-cli/internal/core"
)

func TestDistance_Asymmetric(t *testing.T) {
	backend := cache.NewMemoryBackend()
	transport := api.NewInMemoryTransport()
	transport.SeedDistance(gdansk.location(), sopot.location(), "walking", 1200)
	transport.SeedDistance(sopot.location(), gdansk.location(), "walking", 1350)

	s := newTestService(t, transport, backend, Options{})
	ctx := context.Background()

	ab, err := s.Distance(ctx, gdansk, sopot, ModeWalking)
	require.NoError(t, err)
	ba, err := s.Distance(ctx, sopot, gdansk, ModeWalking)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, ab)
	assert.Equal(t, 1350.0, ba)

	// Both directions are now cached.
	again, err := s.Distance(ctx, gdansk, sopot, ModeWalking)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, again)
	again, err = s.Distance(ctx, sopot, gdansk, ModeWalking)
	require.NoError(t, err)
	assert.Equal(t, 1350.0, again)

	assert.Equal(t, 2, transport.RequestsTo(api.EndpointDistanceMatrix))
	assert.Equal(t, 2, backend.Saves(core.DistanceStore))

	reqs := transport.Requests()
	assert.Equal(t, "54.352,18.6466", reqs[0].Params["origins"])
	assert.Equal(t, "54.4418,18.5601", reqs[0].Params["destinations"])
	assert.Equal(t, "walking", reqs[0].Params["mode"])
}

func TestDistanceKey(t *testing.T) {
	ab, err := DistanceKey(gdansk, sopot, ModeWalking)
	require.NoError(t, err)
	ba, err := DistanceKey(sopot, gdansk, ModeWalking)
	require.NoError(t, err)
	driving, err := DistanceKey(gdansk, sopot, ModeDriving)
	require.NoError(t, err)
	same, err := DistanceKey(gdansk, sopot, ModeWalking)
	require.NoError(t, err)

	assert.NotEqual(t, ab, ba)
	assert.NotEqual(t, ab, driving)
	assert.Equal(t, ab, same)
	assert.Len(t, ab, 64)
}

func TestDistance_ModeIsPartOfKey(t *testing.T) {
	transport := api.NewInMemoryTransport()
	transport.SeedDistance(gdansk.location(), sopot.location(), "walking", 11900)
	transport.SeedDistance(gdansk.location(), sopot.location(), "driving", 13400)

	s := newTestService(t, transport, cache.NewMemoryBackend(), Options{})
	ctx := context.Background()

	walking, err := s.Distance(ctx, gdansk, sopot, ModeWalking)
	require.NoError(t, err)
	driving, err := s.Distance(ctx, gdansk, sopot, ModeDriving)
	require.NoError(t, err)

	assert.Equal(t, 11900.0, walking)
	assert.Equal(t, 13400.0, driving)
	assert.Equal(t, 2, transport.RequestsMade())
}

func TestDistance_DefaultMode(t *testing.T) {
	transport := api.NewInMemoryTransport()
	transport.SeedDistance(gdansk.location(), sopot.location(), "walking", 11900)

	s := newTestService(t, transport, cache.NewMemoryBackend(), Options{})
	meters, err := s.Distance(context.Background(), gdansk, sopot, "")
	require.NoError(t, err)
	assert.Equal(t, 11900.0, meters)
	assert.Equal(t, "walking", transport.Requests()[0].Params["mode"])
}

func TestDistance_ProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		resp   *api.DistanceMatrixResponse
		status string
	}{
		{
			name:   "response status",
			resp:   &api.DistanceMatrixResponse{Status: "REQUEST_DENIED", ErrorMessage: "bad key"},
			status: "REQUEST_DENIED",
		},
		{
			name:   "empty matrix",
			resp:   &api.DistanceMatrixResponse{Status: core.StatusOK},
			status: core.StatusOK,
		},
		{
			name: "cell status",
			resp: &api.DistanceMatrixResponse{
				Status: core.StatusOK,
				Rows:   []api.DistanceRow{{Elements: []api.DistanceElement{{Status: "ZERO_RESULTS"}}}},
			},
			status: "ZERO_RESULTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := cache.NewMemoryBackend()
			transport := &api.MockTransport{
				DistanceMatrixFunc: func(context.Context, api.DistanceRequest) (*api.DistanceMatrixResponse, error) {
					return tt.resp, nil
				},
			}
			s := newTestService(t, transport, backend, Options{})

			_, err := s.Distance(context.Background(), gdansk, sopot, ModeWalking)
			var perr *ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.status, perr.Status)
			assert.Equal(t, "distance", perr.Op)

			// Failures are not cached.
			_, _ = s.Distance(context.Background(), gdansk, sopot, ModeWalking)
			assert.Equal(t, 2, transport.RequestsMade())
			assert.Zero(t, backend.Saves(core.DistanceStore))
		})
	}
}

func TestDistance_TransportError(t *testing.T) {
	transport := &api.MockTransport{
		DistanceMatrixFunc: func(context.Context, api.DistanceRequest) (*api.DistanceMatrixResponse, error) {
			return nil, errors.New("dial tcp: timeout")
		},
	}
	s := newTestService(t, transport, cache.NewMemoryBackend(), Options{})

	_, err := s.Distance(context.Background(), gdansk, sopot, ModeWalking)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial tcp")
}

func TestDistance_ConcurrentMissesShareOneCall(t *testing.T) {
	transport := &api.MockTransport{
		DistanceMatrixFunc: func(context.Context, api.DistanceRequest) (*api.DistanceMatrixResponse, error) {
			time.Sleep(20 * time.Millisecond)
			return &api.DistanceMatrixResponse{
				Status: core.StatusOK,
				Rows: []api.DistanceRow{{Elements: []api.DistanceElement{{
					Status:   core.StatusOK,
					Distance: api.TextValue{Value: 11800},
				}}}},
			}, nil
		},
	}
	s := newTestService(t, transport, cache.NewMemoryBackend(), Options{})

	var wg sync.WaitGroup
	results := make([]float64, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meters, err := s.Distance(context.Background(), gdansk, sopot, ModeWalking)
			assert.NoError(t, err)
			results[i] = meters
		}()
	}
	wg.Wait()

	for _, meters := range results {
		assert.Equal(t, 11800.0, meters)
	}
	assert.Equal(t, 1, transport.RequestsTo(api.EndpointDistanceMatrix))
}
