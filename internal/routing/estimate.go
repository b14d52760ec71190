package routing

import (
	"math"

	"bento-route-planner/internal/models"
)

// Default estimate parameters
const (
	DefaultDwellMinutes = 5.0
)

// DefaultSpeedsKmh are the representative average speeds for duration estimates
var DefaultSpeedsKmh = []float64{30, 40, 50}

// EstimateMinutes returns the estimated route duration in whole minutes:
// travel time at speedKmh plus dwellMinutes for each intermediate stop.
// Halves round to even.
func EstimateMinutes(totalMeters float64, intermediateStops int, dwellMinutes, speedKmh float64) int {
	travel := (totalMeters / 1000) / speedKmh * 60
	return int(math.RoundToEven(travel + float64(intermediateStops)*dwellMinutes))
}

// EstimateTable computes one estimate per speed. Non-positive speeds are skipped.
func EstimateTable(route *models.Route, dwellMinutes float64, speedsKmh []float64) []models.DurationEstimate {
	estimates := make([]models.DurationEstimate, 0, len(speedsKmh))
	for _, speed := range speedsKmh {
		if speed <= 0 {
			continue
		}
		estimates = append(estimates, models.DurationEstimate{
			SpeedKmh: speed,
			Minutes:  EstimateMinutes(route.TotalDistanceMeters, route.IntermediateStops(), dwellMinutes, speed),
		})
	}
	return estimates
}
