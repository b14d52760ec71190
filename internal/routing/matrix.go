package routing

import (
	"fmt"
	"math"

	"bento-route-planner/internal/geo"
	"bento-route-planner/internal/models"
)

// CostMatrix is a dense square matrix of integer meters.
// Index 0 is always the depot.
type CostMatrix [][]int64

// CoordinateLookup returns the coordinates for a stop identifier
type CoordinateLookup func(id string) (models.Coordinates, bool)

// Size returns the number of stops in the matrix
func (m CostMatrix) Size() int { return len(m) }

// Validate checks that the matrix is square and non-negative
func (m CostMatrix) Validate() error {
	n := len(m)
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidMatrix, i, len(row), n)
		}
		for j, v := range row {
			if v < 0 {
				return fmt.Errorf("%w: negative cost %d at [%d][%d]", ErrInvalidMatrix, v, i, j)
			}
		}
	}
	return nil
}

// PathCost sums the arc costs along an open path. No return arc is charged.
func (m CostMatrix) PathCost(path []int) int64 {
	var total int64
	for k := 0; k+1 < len(path); k++ {
		total += m[path[k]][path[k+1]]
	}
	return total
}

// BuildMatrix builds the pairwise cost matrix for ids, depot first.
// Each entry is the great-circle distance floored to whole meters.
func BuildMatrix(ids []string, lookup CoordinateLookup) (CostMatrix, error) {
	n := len(ids)
	coords := make([]models.Coordinates, n)
	for i, id := range ids {
		c, ok := lookup(id)
		if !ok {
			return nil, fmt.Errorf("no coordinates for stop %q", id)
		}
		coords[i] = c
	}

	matrix := make(CostMatrix, n)
	for i := range matrix {
		matrix[i] = make([]int64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			d := int64(math.Floor(geo.Haversine(coords[i], coords[j])))
			matrix[i][j] = d
			matrix[j][i] = d
		}
	}

	return matrix, nil
}
