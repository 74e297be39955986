package proximity

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/colthorp/proximity-cli/internal/core"
)

// DefaultAmenities are searched when a plan lists none.
var DefaultAmenities = []string{
	"zabka",
	"biedronka",
	"lidl",
	"stacja paliw",
	"restauracja",
	"skm",
	"pociag",
}

// Plan describes a batch enrichment run.
type Plan struct {
	Addresses    []string `yaml:"addresses"`
	Amenities    []string `yaml:"amenities"`
	Mode         string   `yaml:"mode"`
	RadiusMeters int      `yaml:"radius_meters"`
	MaxPages     int      `yaml:"max_pages"`
	// Center is "lat,lng" or an address; empty means the city centre.
	Center string `yaml:"center"`
}

// LoadPlan reads a YAML plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "proximity: read plan %s", path)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a YAML plan.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "proximity: parse plan")
	}
	p.Addresses = core.UniqueStrings(p.Addresses)
	p.Amenities = core.UniqueStrings(p.Amenities)
	if len(p.Amenities) == 0 {
		p.Amenities = append([]string(nil), DefaultAmenities...)
	}
	if _, err := ParseTravelMode(p.Mode); err != nil {
		return nil, err
	}
	return &p, nil
}

// EnrichedRow is the proximity of one listing to the nearest place of one amenity.
type EnrichedRow struct {
	Address            string     `json:"address"`
	Coordinate         Coordinate `json:"coordinate"`
	Amenity            string     `json:"amenity"`
	PlaceID            string     `json:"place_id,omitempty"`
	PlaceName          string     `json:"place_name,omitempty"`
	StraightLineMeters float64    `json:"straight_line_meters,omitempty"`
	DistanceMeters     float64    `json:"distance_meters,omitempty"`
	Error              string     `json:"error,omitempty"`
}

// UnresolvedAddress is a listing that could not be geocoded.
type UnresolvedAddress struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

// EnrichReport is the result of Enrich.
type EnrichReport struct {
	Center     Coordinate          `json:"center"`
	Rows       []EnrichedRow       `json:"rows"`
	Unresolved []UnresolvedAddress `json:"unresolved,omitempty"`
}

// Enrich geocodes every listing, searches every amenity around the plan's
// centre, and measures the travel distance from each listing to its nearest
// place per amenity. Listings that fail to geocode and per-row distance
// failures are reported rather than aborting the run.
func (s *Service) Enrich(ctx context.Context, plan *Plan) (*EnrichReport, error) {
	mode, err := ParseTravelMode(plan.Mode)
	if err != nil {
		return nil, err
	}
	if plan.Mode == "" {
		mode = s.opts.DefaultMode
	}

	center, err := s.resolveCenter(ctx, plan.Center)
	if err != nil {
		return nil, err
	}
	report := &EnrichReport{Center: center}

	buckets := make(map[string][]PlaceRecord, len(plan.Amenities))
	for _, amenity := range plan.Amenities {
		b, err := s.Search(ctx, NearbyQuery{
			Query:        amenity,
			Center:       center,
			RadiusMeters: plan.RadiusMeters,
			MaxPages:     plan.MaxPages,
		})
		if err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "proximity: enrich")
		}
		buckets[amenity] = b.Records()
	}

	outcomes, err := s.GeocodeMany(ctx, plan.Addresses)
	if err != nil {
		return nil, err
	}

	rows := make([][]EnrichedRow, len(outcomes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.GeocodeConcurrency)

	for i, o := range outcomes {
		if o.Err != nil {
			report.Unresolved = append(report.Unresolved, UnresolvedAddress{Address: o.Address, Error: o.Err.Error()})
			continue
		}
		g.Go(func() error {
			for _, amenity := range plan.Amenities {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows[i] = append(rows[i], s.enrichRow(gctx, o, amenity, buckets[amenity], mode))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "proximity: enrich")
	}

	for _, r := range rows {
		report.Rows = append(report.Rows, r...)
	}
	zap.L().Info("proximity: enrichment finished",
		zap.Int("rows", len(report.Rows)),
		zap.Int("unresolved", len(report.Unresolved)),
	)
	return report, nil
}

func (s *Service) enrichRow(ctx context.Context, listing GeocodeOutcome, amenity string, places []PlaceRecord, mode TravelMode) EnrichedRow {
	row := EnrichedRow{Address: listing.Address, Coordinate: listing.Coordinate, Amenity: amenity}

	nearest, straight, ok := Nearest(listing.Coordinate, places)
	if !ok {
		row.Error = "no places found"
		return row
	}
	row.PlaceID = nearest.PlaceID
	row.PlaceName = nearest.Name
	row.StraightLineMeters = straight

	meters, err := s.Distance(ctx, listing.Coordinate, nearest.Coordinate, mode)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	row.DistanceMeters = meters
	return row
}

func (s *Service) resolveCenter(ctx context.Context, center string) (Coordinate, error) {
	switch {
	case center == "":
		return s.CityCenter(ctx)
	case core.LooksLikeLatLng(center):
		return ParseCoordinate(center)
	default:
		return s.Locate(ctx, center)
	}
}
