package proximity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineMeters(t *testing.T) {
	d := HaversineMeters(gdansk.Point(), sopot.Point())
	assert.InDelta(t, 11448.17, d, 1.0)

	assert.Equal(t, d, HaversineMeters(sopot.Point(), gdansk.Point()))
	assert.Zero(t, HaversineMeters(gdansk.Point(), gdansk.Point()))
}

func TestNearest(t *testing.T) {
	places := []PlaceRecord{
		{PlaceID: "sopot", Coordinate: sopot},
		{PlaceID: "oliwa", Coordinate: Coordinate{Lat: 54.41, Lng: 18.56}},
		{PlaceID: "centrum", Coordinate: Coordinate{Lat: 54.35, Lng: 18.65}},
	}

	got, meters, ok := Nearest(gdansk, places)
	require.True(t, ok)
	assert.Equal(t, "centrum", got.PlaceID)
	assert.Less(t, meters, 500.0)

	got, _, ok = Nearest(sopot, places)
	require.True(t, ok)
	assert.Equal(t, "sopot", got.PlaceID)
}

func TestNearest_Empty(t *testing.T) {
	_, _, ok := Nearest(gdansk, nil)
	assert.False(t, ok)
}

func TestNearest_TieGoesToLowerID(t *testing.T) {
	places := []PlaceRecord{
		{PlaceID: "b", Coordinate: sopot},
		{PlaceID: "a", Coordinate: sopot},
	}
	got, _, ok := Nearest(gdansk, places)
	require.True(t, ok)
	assert.Equal(t, "a", got.PlaceID)
}
