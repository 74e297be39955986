// Package proximity implements the cached geocode, nearby-place and distance
// resolvers and the Service facade that composes them.
package proximity

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/colthorp/proximity-cli/internal/api"
	"github.com/colthorp/proximity-cli/internal/core"
)

// Coordinate is a WGS84 latitude/longitude pair. Values are never mutated after creation.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// NewCoordinate validates and builds a coordinate.
func NewCoordinate(lat, lng float64) (Coordinate, error) {
	if err := core.ValidateLatLng(lat, lng); err != nil {
		return Coordinate{}, eris.Wrap(err, "proximity: invalid coordinate")
	}
	return Coordinate{Lat: lat, Lng: lng}, nil
}

// ParseCoordinate parses a "lat,lng" string.
func ParseCoordinate(s string) (Coordinate, error) {
	lat, lng, err := core.ParseLatLng(s)
	if err != nil {
		return Coordinate{}, eris.Wrap(err, "proximity: parse coordinate")
	}
	return Coordinate{Lat: lat, Lng: lng}, nil
}

// String renders the coordinate as "lat,lng".
func (c Coordinate) String() string {
	return core.FormatLatLng(c.Lat, c.Lng)
}

// Point returns the coordinate as a go-geom point (XY = lng, lat) in SRID 4326.
func (c Coordinate) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lng, c.Lat}).SetSRID(4326)
}

func (c Coordinate) location() api.Location {
	return api.Location{Lat: c.Lat, Lng: c.Lng}
}

// GeocodeCandidate is one geometry candidate for an address.
type GeocodeCandidate struct {
	FormattedAddress string     `json:"formatted_address"`
	Location         Coordinate `json:"location"`
	LocationType     string     `json:"location_type,omitempty"`
	PlaceID          string     `json:"place_id,omitempty"`
}

// GeocodeResult is the ordered candidate list returned for one address.
type GeocodeResult []GeocodeCandidate

// Coordinate returns the first candidate's location, which is taken as ground truth.
func (r GeocodeResult) Coordinate() (Coordinate, error) {
	if len(r) == 0 {
		return Coordinate{}, ErrNoGeocodeMatch
	}
	return r[0].Location, nil
}

// PlaceRecord is one place found by a nearby search.
type PlaceRecord struct {
	PlaceID    string     `json:"place_id"`
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"coordinate"`
	Address    string     `json:"address,omitempty"`
	Rating     *float64   `json:"rating,omitempty"`
	Types      []string   `json:"types,omitempty"`
	Amenity    string     `json:"amenity"`
}

// Bucket holds the places found for one amenity query, keyed by place id.
type Bucket map[string]PlaceRecord

// Records returns the bucket's places ordered by place id.
func (b Bucket) Records() []PlaceRecord {
	out := make([]PlaceRecord, 0, len(b))
	for _, r := range b {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlaceID < out[j].PlaceID })
	return out
}

func (b Bucket) clone() Bucket {
	out := make(Bucket, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// TravelMode selects how the provider measures a distance.
type TravelMode string

// Supported travel modes.
const (
	ModeWalking   TravelMode = "walking"
	ModeDriving   TravelMode = "driving"
	ModeBicycling TravelMode = "bicycling"
	ModeTransit   TravelMode = "transit"
)

// ParseTravelMode validates a mode name. An empty string yields walking.
func ParseTravelMode(s string) (TravelMode, error) {
	switch m := TravelMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeWalking, nil
	case ModeWalking, ModeDriving, ModeBicycling, ModeTransit:
		return m, nil
	}
	return "", eris.Errorf("proximity: unknown travel mode %q", s)
}
