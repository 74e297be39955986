package proximity

import (
	"math"

	"github.com/twpayne/go-geom"
)

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two XY (lng, lat) points.
func HaversineMeters(a, b *geom.Point) float64 {
	lat1, lng1 := a.Y(), a.X()
	lat2, lng2 := b.Y(), b.X()

	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusMeters * 2 * math.Asin(math.Sqrt(h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Nearest returns the place closest to origin in a straight line and its
// distance in meters. Ties go to the lower place id. ok is false when places is empty.
func Nearest(origin Coordinate, places []PlaceRecord) (place PlaceRecord, meters float64, ok bool) {
	from := origin.Point()
	for _, p := range places {
		d := HaversineMeters(from, p.Coordinate.Point())
		if !ok || d < meters || (d == meters && p.PlaceID < place.PlaceID) {
			place, meters, ok = p, d, true
		}
	}
	return place, meters, ok
}
