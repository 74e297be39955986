package api

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/colthorp/proximity-cli/internal/core"
)

// RequestLogEntry records a request made to a transport.
type RequestLogEntry struct {
	Endpoint string
	Params   map[string]string
}

// requestLog is shared by the in-memory transports.
type requestLog struct {
	mu      sync.Mutex
	entries []RequestLogEntry
}

func (l *requestLog) record(endpoint string, params map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, RequestLogEntry{Endpoint: endpoint, Params: params})
}

// Requests returns a copy of every recorded request.
func (l *requestLog) Requests() []RequestLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RequestLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// RequestsMade returns the number of requests made to this transport.
func (l *requestLog) RequestsMade() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RequestsTo returns the number of requests made to one endpoint.
func (l *requestLog) RequestsTo(endpoint string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Endpoint == endpoint {
			n++
		}
	}
	return n
}

func (l *requestLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// InMemoryTransport is a lightweight simulation of the provider.
// Geocode and distance answers are seeded per key; text search pages are seeded
// per query and served in order, one page per request.
type InMemoryTransport struct {
	requestLog

	mu        sync.Mutex
	geocodes  map[string]*GeocodeResponse
	pages     map[string][]*PlaceSearchResponse
	cursor    map[string]int
	distances map[string]*DistanceMatrixResponse
	lastQuery string
}

// NewInMemoryTransport creates a new in-memory transport for testing.
func NewInMemoryTransport() *InMemoryTransport {
	t := &InMemoryTransport{}
	t.Reset()
	return t
}

// Reset clears all seeded responses and recorded requests.
func (t *InMemoryTransport) Reset() {
	t.mu.Lock()
	t.geocodes = make(map[string]*GeocodeResponse)
	t.pages = make(map[string][]*PlaceSearchResponse)
	t.cursor = make(map[string]int)
	t.distances = make(map[string]*DistanceMatrixResponse)
	t.lastQuery = ""
	t.mu.Unlock()
	t.reset()
}

// SeedGeocode registers a successful single-candidate answer for address.
func (t *InMemoryTransport) SeedGeocode(address string, loc Location) {
	t.SeedGeocodeResponse(address, &GeocodeResponse{
		Status: core.StatusOK,
		Results: []GeocodeCandidate{{
			FormattedAddress: address,
			Geometry:         Geometry{Location: loc, LocationType: "APPROXIMATE"},
		}},
	})
}

// SeedGeocodeResponse registers a raw answer for address.
func (t *InMemoryTransport) SeedGeocodeResponse(address string, resp *GeocodeResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.geocodes[address] = resp
}

// SeedPages registers the pages returned for query, in order.
func (t *InMemoryTransport) SeedPages(query string, pages ...*PlaceSearchResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pages[query] = append(t.pages[query], pages...)
}

// SeedDistance registers an OK distance answer for the ordered pair and mode.
func (t *InMemoryTransport) SeedDistance(origin, destination Location, mode string, meters float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.distances[distanceKey(origin, destination, mode)] = &DistanceMatrixResponse{
		Status: core.StatusOK,
		Rows: []DistanceRow{{Elements: []DistanceElement{{
			Status:   core.StatusOK,
			Distance: TextValue{Text: fmt.Sprintf("%.0f m", meters), Value: meters},
		}}}},
	}
}

// Geocode returns the seeded answer, or ZERO_RESULTS.
func (t *InMemoryTransport) Geocode(_ context.Context, address string) (*GeocodeResponse, error) {
	t.record(EndpointGeocode, map[string]string{"address": address})

	t.mu.Lock()
	defer t.mu.Unlock()
	if resp, ok := t.geocodes[address]; ok {
		return resp, nil
	}
	return &GeocodeResponse{Status: core.StatusZeroResults}, nil
}

// NearbySearch serves seeded pages. A request without a token starts the
// query from its first page; each token request advances by one page and
// repeats the last page once the seeded pages run out.
func (t *InMemoryTransport) NearbySearch(_ context.Context, req NearbyRequest) (*PlaceSearchResponse, error) {
	params := map[string]string{}
	if req.PageToken != "" {
		params["pagetoken"] = req.PageToken
	} else {
		params["query"] = req.Query
		params["location"] = core.FormatLatLng(req.Center.Lat, req.Center.Lng)
		params["radius"] = strconv.Itoa(req.RadiusMeters)
	}
	t.record(EndpointTextSearch, params)

	t.mu.Lock()
	defer t.mu.Unlock()

	query := req.Query
	if req.PageToken == "" {
		t.cursor[query] = 0
		t.lastQuery = query
	} else {
		if query == "" {
			query = t.lastQuery
		}
		t.cursor[query]++
	}

	pages := t.pages[query]
	if len(pages) == 0 {
		return &PlaceSearchResponse{Status: core.StatusZeroResults}, nil
	}
	idx := t.cursor[query]
	if idx >= len(pages) {
		idx = len(pages) - 1
	}
	return pages[idx], nil
}

// DistanceMatrix returns the seeded answer for the first origin/destination
// pair, or a NOT_FOUND element.
func (t *InMemoryTransport) DistanceMatrix(_ context.Context, req DistanceRequest) (*DistanceMatrixResponse, error) {
	t.record(EndpointDistanceMatrix, map[string]string{
		"origins":      joinLocations(req.Origins),
		"destinations": joinLocations(req.Destinations),
		"mode":         req.Mode,
	})

	if len(req.Origins) == 0 || len(req.Destinations) == 0 {
		return &DistanceMatrixResponse{Status: "INVALID_REQUEST"}, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if resp, ok := t.distances[distanceKey(req.Origins[0], req.Destinations[0], req.Mode)]; ok {
		return resp, nil
	}
	return &DistanceMatrixResponse{
		Status: core.StatusOK,
		Rows:   []DistanceRow{{Elements: []DistanceElement{{Status: "NOT_FOUND"}}}},
	}, nil
}

func distanceKey(origin, destination Location, mode string) string {
	return joinLocations([]Location{origin, destination}) + "|" + mode
}

// MockTransport delegates every call to a function field, for tests that need
// to script errors or unusual provider behaviour. Nil functions answer with
// ZERO_RESULTS.
type MockTransport struct {
	requestLog

	GeocodeFunc        func(ctx context.Context, address string) (*GeocodeResponse, error)
	NearbySearchFunc   func(ctx context.Context, req NearbyRequest) (*PlaceSearchResponse, error)
	DistanceMatrixFunc func(ctx context.Context, req DistanceRequest) (*DistanceMatrixResponse, error)
}

// Geocode implements Transport.
func (t *MockTransport) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	t.record(EndpointGeocode, map[string]string{"address": address})
	if t.GeocodeFunc == nil {
		return &GeocodeResponse{Status: core.StatusZeroResults}, nil
	}
	return t.GeocodeFunc(ctx, address)
}

// NearbySearch implements Transport.
func (t *MockTransport) NearbySearch(ctx context.Context, req NearbyRequest) (*PlaceSearchResponse, error) {
	t.record(EndpointTextSearch, map[string]string{"query": req.Query, "pagetoken": req.PageToken})
	if t.NearbySearchFunc == nil {
		return &PlaceSearchResponse{Status: core.StatusZeroResults}, nil
	}
	return t.NearbySearchFunc(ctx, req)
}

// DistanceMatrix implements Transport.
func (t *MockTransport) DistanceMatrix(ctx context.Context, req DistanceRequest) (*DistanceMatrixResponse, error) {
	t.record(EndpointDistanceMatrix, map[string]string{"mode": req.Mode})
	if t.DistanceMatrixFunc == nil {
		return &DistanceMatrixResponse{Status: core.StatusZeroResults}, nil
	}
	return t.DistanceMatrixFunc(ctx, req)
}
