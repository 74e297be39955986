package proximity

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/colthorp/proximity-cli/internal/api"
	"github.com/colthorp/proximity-cli/internal/cache"
	"github.com/colthorp/proximity-cli/internal/config"
	"github.com/colthorp/proximity-cli/internal/core"
)

// Options configures a Service. Zero values fall back to the package defaults.
type Options struct {
	CityCenterAddress  string
	RadiusMeters       int
	MaxPages           int
	PageTokenDelay     time.Duration
	CheckpointPages    bool
	GeocodeConcurrency int
	DefaultMode        TravelMode
	Quiet              bool
}

// OptionsFromConfig maps the loaded configuration onto service options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := ParseTravelMode(cfg.Distance.Mode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		CityCenterAddress:  cfg.Geocode.CityCenter,
		RadiusMeters:       cfg.Nearby.RadiusMeters,
		MaxPages:           cfg.Nearby.MaxPages,
		PageTokenDelay:     cfg.Nearby.PageTokenDelay,
		CheckpointPages:    cfg.Nearby.CheckpointPages,
		GeocodeConcurrency: cfg.Geocode.Concurrency,
		DefaultMode:        mode,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.CityCenterAddress == "" {
		o.CityCenterAddress = core.DefaultCityCenter
	}
	if o.RadiusMeters <= 0 {
		o.RadiusMeters = core.DefaultRadiusMeters
	}
	if o.MaxPages <= 0 {
		o.MaxPages = core.DefaultMaxPages
	}
	if o.PageTokenDelay < 0 {
		o.PageTokenDelay = 0
	}
	if o.GeocodeConcurrency <= 0 {
		o.GeocodeConcurrency = 1
	}
	if o.DefaultMode == "" {
		o.DefaultMode = ModeWalking
	}
	return o
}

// Service is the proximity enrichment facade.
//
// It owns the three durable stores, each loaded once by New:
//
//   - geocode: address -> GeocodeResult (only non-empty results are stored)
//   - amenity: query -> Bucket (a present empty bucket means "queried, nothing found")
//   - distance: digest of (origin, destination, mode) -> meters
//
// Every resolver reads through its store first, so repeated calls with the same
// arguments reach the provider at most once; concurrent misses on the same key
// are collapsed into one provider call.
type Service struct {
	transport api.Transport
	opts      Options

	geocodes  *cache.Store[GeocodeResult]
	amenities *cache.Store[Bucket]
	distances *cache.Store[float64]

	geocodeFlight  singleflight.Group
	distanceFlight singleflight.Group
}

// New opens the three stores on backend. A corrupt snapshot is fatal.
func New(ctx context.Context, opts Options, transport api.Transport, backend cache.Backend) (*Service, error) {
	if transport == nil {
		return nil, eris.New("proximity: transport is required")
	}
	if backend == nil {
		backend = cache.NewFilesystemBackend("")
	}

	geocodes, err := cache.Open[GeocodeResult](ctx, backend, core.GeocodeStore)
	if err != nil {
		return nil, err
	}
	amenities, err := cache.Open[Bucket](ctx, backend, core.AmenityStore)
	if err != nil {
		return nil, err
	}
	distances, err := cache.Open[float64](ctx, backend, core.DistanceStore)
	if err != nil {
		return nil, err
	}

	s := &Service{
		transport: transport,
		opts:      opts.withDefaults(),
		geocodes:  geocodes,
		amenities: amenities,
		distances: distances,
	}
	zap.L().Debug("proximity: service ready",
		zap.Int("geocodes", geocodes.Len()),
		zap.Int("amenities", amenities.Len()),
		zap.Int("distances", distances.Len()),
	)
	return s, nil
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// StoreStats describes one store.
type StoreStats struct {
	Name     string `json:"name"`
	Entries  int    `json:"entries"`
	Location string `json:"location"`
}

// Stats summarises the three stores.
type Stats struct {
	Geocode  StoreStats `json:"geocode"`
	Amenity  StoreStats `json:"amenity"`
	Distance StoreStats `json:"distance"`
	Places   int        `json:"places"`
}

// Stats returns entry counts and locations for every store.
func (s *Service) Stats() Stats {
	places := 0
	for _, q := range s.amenities.Keys() {
		b, _ := s.amenities.Get(q)
		places += len(b)
	}
	return Stats{
		Geocode:  StoreStats{Name: s.geocodes.Name(), Entries: s.geocodes.Len(), Location: s.geocodes.Location()},
		Amenity:  StoreStats{Name: s.amenities.Name(), Entries: s.amenities.Len(), Location: s.amenities.Location()},
		Distance: StoreStats{Name: s.distances.Name(), Entries: s.distances.Len(), Location: s.distances.Location()},
		Places:   places,
	}
}
