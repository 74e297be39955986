package proximity

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/colthorp/proximity-cli/internal/core"
)

// Geocode resolves an address, consulting the geocode store first.
//
// A stored result is returned with no provider call. Otherwise exactly one
// provider call is made; a non-empty result is persisted before returning,
// while an empty one (ZERO_RESULTS, or no usable candidates) is returned
// without being stored so a later call can retry it.
func (s *Service) Geocode(ctx context.Context, address string) (GeocodeResult, error) {
	if strings.TrimSpace(address) == "" {
		return nil, eris.New("proximity: empty address")
	}
	if cached, ok := s.geocodes.Get(address); ok {
		return cached, nil
	}

	v, err, _ := s.geocodeFlight.Do(address, func() (interface{}, error) {
		if cached, ok := s.geocodes.Get(address); ok {
			return cached, nil
		}
		return s.fetchGeocode(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	return v.(GeocodeResult), nil
}

func (s *Service) fetchGeocode(ctx context.Context, address string) (GeocodeResult, error) {
	resp, err := s.transport.Geocode(ctx, address)
	if err != nil {
		return nil, eris.Wrapf(err, "proximity: geocode %q", address)
	}

	switch resp.Status {
	case core.StatusOK:
	case core.StatusZeroResults:
		return GeocodeResult{}, nil
	default:
		return nil, &ProviderError{Op: "geocode", Status: resp.Status, Message: resp.ErrorMessage}
	}

	result := make(GeocodeResult, 0, len(resp.Results))
	for _, c := range resp.Results {
		loc, err := NewCoordinate(c.Geometry.Location.Lat, c.Geometry.Location.Lng)
		if err != nil {
			zap.L().Warn("proximity: skipping geocode candidate",
				zap.String("address", address),
				zap.Error(err),
			)
			continue
		}
		result = append(result, GeocodeCandidate{
			FormattedAddress: c.FormattedAddress,
			Location:         loc,
			LocationType:     c.Geometry.LocationType,
			PlaceID:          c.PlaceID,
		})
	}
	if len(result) == 0 {
		return result, nil
	}

	if err := s.geocodes.Write(ctx, address, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Locate geocodes address and returns its first candidate's coordinate.
func (s *Service) Locate(ctx context.Context, address string) (Coordinate, error) {
	result, err := s.Geocode(ctx, address)
	if err != nil {
		return Coordinate{}, err
	}
	coord, err := result.Coordinate()
	if err != nil {
		return Coordinate{}, eris.Wrapf(err, "proximity: locate %q", address)
	}
	return coord, nil
}

// CityCenter returns the coordinate of the configured reference address.
func (s *Service) CityCenter(ctx context.Context) (Coordinate, error) {
	return s.Locate(ctx, s.opts.CityCenterAddress)
}

// GeocodeOutcome is the per-address result of GeocodeMany.
type GeocodeOutcome struct {
	Address    string
	Coordinate Coordinate
	Err        error
}

// GeocodeMany locates every distinct address with bounded concurrency.
// Per-address failures are reported in the outcomes; the returned error is
// only set when ctx is cancelled.
func (s *Service) GeocodeMany(ctx context.Context, addresses []string) ([]GeocodeOutcome, error) {
	unique := core.UniqueStrings(addresses)
	outcomes := make([]GeocodeOutcome, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.GeocodeConcurrency)

	for i, addr := range unique {
		g.Go(func() error {
			coord, err := s.Locate(gctx, addr)
			outcomes[i] = GeocodeOutcome{Address: addr, Coordinate: coord, Err: err}
			if err != nil {
				zap.L().Warn("proximity: geocode failed", zap.String("address", addr), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return outcomes, eris.Wrap(err, "proximity: geocode many")
	}
	return outcomes, nil
}
