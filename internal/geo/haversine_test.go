package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"bento-route-planner/internal/models"
)

func TestHaversineSamePointIsZero(t *testing.T) {
	points := []models.Coordinates{
		{Lat: 0, Lng: 0},
		{Lat: 35.0116, Lng: 135.7681},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 90, Lng: 0},
	}

	for _, p := range points {
		assert.Equal(t, 0.0, Haversine(p, p), "distance(p,p) for %+v", p)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	pairs := [][2]models.Coordinates{
		{{Lat: 35.0116, Lng: 135.7681}, {Lat: 34.6937, Lng: 135.5023}},
		{{Lat: 51.5074, Lng: -0.1278}, {Lat: 40.7128, Lng: -74.0060}},
		{{Lat: -10, Lng: 170}, {Lat: 10, Lng: -170}},
	}

	for _, pair := range pairs {
		assert.InDelta(t, Haversine(pair[0], pair[1]), Haversine(pair[1], pair[0]), 1e-9)
	}
}

func TestHaversineOneDegreeLongitudeAtEquator(t *testing.T) {
	d := Haversine(models.Coordinates{Lat: 0, Lng: 0}, models.Coordinates{Lat: 0, Lng: 1})

	assert.InEpsilon(t, 111320.0, d, 0.01)
	// exact value for R = 6371 km
	assert.InDelta(t, 2*math.Pi*EarthRadiusKm*1000/360, d, 1e-6)
}

func TestHaversineKnownCityDistance(t *testing.T) {
	kyoto := models.Coordinates{Lat: 35.0116, Lng: 135.7681}
	osaka := models.Coordinates{Lat: 34.6937, Lng: 135.5023}

	// roughly 42.9 km great-circle
	assert.InDelta(t, 42900, Haversine(kyoto, osaka), 500)
}

func TestHaversineAntipodal(t *testing.T) {
	d := Haversine(models.Coordinates{Lat: 0, Lng: 0}, models.Coordinates{Lat: 0, Lng: 180})

	assert.InDelta(t, math.Pi*EarthRadiusKm*1000, d, 1e-3)
}
