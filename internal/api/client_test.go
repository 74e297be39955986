package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/colthorp/proximity-cli/internal/config"
	"github.com/colthorp/proximity-cli/internal/core"
)

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithBaseURL(srv.URL),
		WithRateLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithBackoff(time.Millisecond),
	}
	c, err := NewClient("test-key", append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient("")
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	_, err = NewClientFromConfig(config.ProviderConfig{})
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestNewTransportFromConfig(t *testing.T) {
	transport, err := NewTransportFromConfig(config.ProviderConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.IsType(t, &Client{}, transport)

	offline, err := NewTransportFromConfig(config.ProviderConfig{})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = offline.Geocode(ctx, "Gdańsk")
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
	_, err = offline.NearbySearch(ctx, NearbyRequest{Query: "zabka"})
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
	_, err = offline.DistanceMatrix(ctx, DistanceRequest{})
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+EndpointGeocode, r.URL.Path)
		assert.Equal(t, "Gdańsk", r.URL.Query().Get("address"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "pl", r.URL.Query().Get("language"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"formatted_address": "Gdańsk, Poland",
				"place_id": "ChIJ-gdansk",
				"geometry": {"location": {"lat": 54.352, "lng": 18.6466}, "location_type": "APPROXIMATE"}
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithLanguage("pl"))
	resp, err := c.Geocode(context.Background(), "Gdańsk")

	require.NoError(t, err)
	assert.Equal(t, core.StatusOK, resp.Status)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "ChIJ-gdansk", resp.Results[0].PlaceID)
	assert.InDelta(t, 54.352, resp.Results[0].Geometry.Location.Lat, 1e-9)
	assert.InDelta(t, 18.6466, resp.Results[0].Geometry.Location.Lng, 1e-9)
}

func TestNearbySearch_Params(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		assert.Equal(t, "/"+EndpointTextSearch, r.URL.Path)

		var resp PlaceSearchResponse
		if n == 1 {
			assert.Equal(t, "zabka", q.Get("query"))
			assert.Equal(t, "54.352,18.6466", q.Get("location"))
			assert.Equal(t, "10000", q.Get("radius"))
			assert.Equal(t, "convenience_store", q.Get("type"))
			assert.Empty(t, q.Get("pagetoken"))
			rating := 4.2
			resp = PlaceSearchResponse{
				Status:        core.StatusOK,
				Results:       []PlaceResult{{PlaceID: "p1", Name: "Żabka", Rating: &rating}},
				NextPageToken: "tok-1",
			}
		} else {
			assert.Equal(t, "tok-1", q.Get("pagetoken"))
			assert.Empty(t, q.Get("query"))
			resp = PlaceSearchResponse{Status: core.StatusOK, Results: []PlaceResult{{PlaceID: "p2"}}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx := context.Background()
	req := NearbyRequest{
		Query:        "zabka",
		Center:       Location{Lat: 54.352, Lng: 18.6466},
		RadiusMeters: 10000,
		Type:         "convenience_store",
	}

	first, err := c.NearbySearch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", first.NextPageToken)
	require.NotNil(t, first.Results[0].Rating)
	assert.InDelta(t, 4.2, *first.Results[0].Rating, 1e-9)

	req.PageToken = first.NextPageToken
	second, err := c.NearbySearch(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, second.NextPageToken)
	assert.Nil(t, second.Results[0].Rating)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDistanceMatrix_Params(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/"+EndpointDistanceMatrix, r.URL.Path)
		assert.Equal(t, "54.35,18.64", q.Get("origins"))
		assert.Equal(t, "54.4,18.57|54.5,18.5", q.Get("destinations"))
		assert.Equal(t, "walking", q.Get("mode"))
		_, _ = w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"OK","distance":{"text":"1.2 km","value":1234}}]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.DistanceMatrix(context.Background(), DistanceRequest{
		Origins:      []Location{{Lat: 54.35, Lng: 18.64}},
		Destinations: []Location{{Lat: 54.4, Lng: 18.57}, {Lat: 54.5, Lng: 18.5}},
		Mode:         "walking",
	})

	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.InDelta(t, 1234, resp.Rows[0].Elements[0].Distance.Value, 1e-9)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithMaxAttempts(3))
	resp, err := c.Geocode(context.Background(), "nowhere")

	require.NoError(t, err)
	assert.Equal(t, core.StatusZeroResults, resp.Status)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClient_RetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithBackoff(time.Hour))
	_, err := c.Geocode(context.Background(), "x")

	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithMaxAttempts(2))
	_, err := c.Geocode(context.Background(), "x")

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error_message":"bad key"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Geocode(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Geocode(ctx, "x")
	assert.Error(t, err)
}

func TestClient_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Geocode(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}
