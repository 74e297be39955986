// Package api provides the HTTP client and wire types for the mapping provider.
package api

import "context"

// Provider endpoints, relative to the base URL.
const (
	EndpointGeocode        = "geocode/json"
	EndpointTextSearch     = "place/textsearch/json"
	EndpointDistanceMatrix = "distancematrix/json"
)

// Location is a latitude/longitude pair as the provider encodes it.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geometry wraps a location and the provider's precision hint.
type Geometry struct {
	Location     Location `json:"location"`
	LocationType string   `json:"location_type,omitempty"`
}

// GeocodeCandidate is one entry of a geocode response.
type GeocodeCandidate struct {
	FormattedAddress string   `json:"formatted_address"`
	Geometry         Geometry `json:"geometry"`
	PlaceID          string   `json:"place_id,omitempty"`
	Types            []string `json:"types,omitempty"`
}

// GeocodeResponse is the provider response for one address.
type GeocodeResponse struct {
	Status       string             `json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Results      []GeocodeCandidate `json:"results"`
}

// PlaceResult is one place in a text search page.
type PlaceResult struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address,omitempty"`
	Vicinity         string   `json:"vicinity,omitempty"`
	Geometry         Geometry `json:"geometry"`
	Rating           *float64 `json:"rating,omitempty"`
	Types            []string `json:"types,omitempty"`
}

// PlaceSearchResponse is one page of a text search.
type PlaceSearchResponse struct {
	Status        string        `json:"status"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Results       []PlaceResult `json:"results"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

// NearbyRequest describes one text search page request.
// When PageToken is set the provider ignores the other parameters.
type NearbyRequest struct {
	Query        string
	Center       Location
	RadiusMeters int
	Type         string
	PageToken    string
}

// DistanceRequest describes a distance matrix request.
type DistanceRequest struct {
	Origins      []Location
	Destinations []Location
	Mode         string
}

// TextValue is a human-readable value paired with its numeric form.
type TextValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

// DistanceElement is one origin/destination cell of the matrix.
type DistanceElement struct {
	Status   string    `json:"status"`
	Distance TextValue `json:"distance"`
	Duration TextValue `json:"duration"`
}

// DistanceRow holds the cells for one origin.
type DistanceRow struct {
	Elements []DistanceElement `json:"elements"`
}

// DistanceMatrixResponse is the provider response for a distance matrix request.
type DistanceMatrixResponse struct {
	Status               string        `json:"status"`
	ErrorMessage         string        `json:"error_message,omitempty"`
	OriginAddresses      []string      `json:"origin_addresses,omitempty"`
	DestinationAddresses []string      `json:"destination_addresses,omitempty"`
	Rows                 []DistanceRow `json:"rows"`
}

// Transport is the interface for making provider requests.
// Implementations return the decoded response whatever its status; interpreting
// the status is left to the caller.
type Transport interface {
	Geocode(ctx context.Context, address string) (*GeocodeResponse, error)
	NearbySearch(ctx context.Context, req NearbyRequest) (*PlaceSearchResponse, error)
	DistanceMatrix(ctx context.Context, req DistanceRequest) (*DistanceMatrixResponse, error)
}
