package proximity

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/colthorp/proximity-cli/internal/api"
	"github.com/colthorp/proximity-cli/internal/cache"
	"github.com/colthorp/proximity-cli/internal/core"
)

// DistanceKey returns the distance store key for an ordered pair and mode.
// Swapping origin and destination gives a different key.
func DistanceKey(origin, destination Coordinate, mode TravelMode) (string, error) {
	return cache.DigestKey(origin, destination, mode)
}

// Distance returns the travel distance in meters from origin to destination.
//
// The value is read from the distance store when present. Otherwise one
// provider call is made and the first origin/first destination cell is stored
// and returned. Nothing is stored when the response or the cell is not OK.
// An empty mode uses the service default.
func (s *Service) Distance(ctx context.Context, origin, destination Coordinate, mode TravelMode) (float64, error) {
	if mode == "" {
		mode = s.opts.DefaultMode
	}
	key, err := DistanceKey(origin, destination, mode)
	if err != nil {
		return 0, err
	}
	if meters, ok := s.distances.Get(key); ok {
		return meters, nil
	}

	// Concurrent misses on one key share a single provider call.
	v, err, _ := s.distanceFlight.Do(key, func() (interface{}, error) {
		if meters, ok := s.distances.Get(key); ok {
			return meters, nil
		}
		return s.fetchDistance(ctx, key, origin, destination, mode)
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (s *Service) fetchDistance(ctx context.Context, key string, origin, destination Coordinate, mode TravelMode) (float64, error) {
	resp, err := s.transport.DistanceMatrix(ctx, api.DistanceRequest{
		Origins:      []api.Location{origin.location()},
		Destinations: []api.Location{destination.location()},
		Mode:         string(mode),
	})
	if err != nil {
		return 0, eris.Wrapf(err, "proximity: distance %s -> %s", origin, destination)
	}
	if resp.Status != core.StatusOK {
		return 0, &ProviderError{Op: "distance", Status: resp.Status, Message: resp.ErrorMessage}
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, &ProviderError{Op: "distance", Status: resp.Status, Message: "empty distance matrix"}
	}

	cell := resp.Rows[0].Elements[0]
	if cell.Status != core.StatusOK {
		return 0, &ProviderError{Op: "distance", Status: cell.Status}
	}

	meters := cell.Distance.Value
	if err := s.distances.Write(ctx, key, meters); err != nil {
		return 0, err
	}
	return meters, nil
}
