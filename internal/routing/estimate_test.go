package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bento-route-planner/internal/models"
)

func TestEstimateMinutes(t *testing.T) {
	// 12 km at 30 km/h = 24 min, plus 2 stops x 5 min
	assert.Equal(t, 34, EstimateMinutes(12000, 2, 5, 30))
	assert.Equal(t, 28, EstimateMinutes(12000, 2, 5, 40))
	assert.Equal(t, 0, EstimateMinutes(0, 0, 5, 30))
}

func TestEstimateMinutes_HalvesRoundToEven(t *testing.T) {
	assert.Equal(t, 2, EstimateMinutes(0, 1, 2.5, 30))
	assert.Equal(t, 2, EstimateMinutes(0, 1, 1.5, 30))
	assert.Equal(t, 4, EstimateMinutes(0, 3, 1.5, 30))
}

func TestEstimateTable(t *testing.T) {
	route := &models.Route{
		Stops:               make([]models.RouteStop, 4),
		TotalDistanceMeters: 12000,
	}

	table := EstimateTable(route, 5, []float64{30, 0, 40, -10, 50})

	assert.Equal(t, []models.DurationEstimate{
		{SpeedKmh: 30, Minutes: 34},
		{SpeedKmh: 40, Minutes: 28},
		{SpeedKmh: 50, Minutes: 24},
	}, table)
}
